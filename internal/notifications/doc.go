// Package notifications delivers run events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Long extraction runs are unattended, so only run-level milestones
// are published: started, completed, and failed.
package notifications
