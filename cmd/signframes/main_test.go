package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"signframes/internal/config"
	"signframes/internal/pose"
	"signframes/internal/testsupport"
)

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

// writePoseFixture stores a PoseNet-style JSON pose whose hands sit at
// (100, 115) and (237, 112).
func writePoseFixture(t *testing.T, path string) {
	t.Helper()
	raw := testsupport.RawPose(0.8, 0, 0, map[string]pose.Position{
		pose.LeftElbow:  {X: 100, Y: 50},
		pose.LeftWrist:  {X: 100, Y: 100},
		pose.RightElbow: {X: 250, Y: 60},
		pose.RightWrist: {X: 240, Y: 100},
	})
	type position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	type keypoint struct {
		Part     string   `json:"part"`
		Position position `json:"position"`
		Score    float64  `json:"score"`
	}
	payload := struct {
		Score     float64    `json:"score"`
		Keypoints []keypoint `json:"keypoints"`
	}{Score: raw.Score}
	for _, kp := range raw.Keypoints {
		payload.Keypoints = append(payload.Keypoints, keypoint{
			Part:     kp.Part,
			Position: position{X: kp.Position.X, Y: kp.Position.Y},
			Score:    kp.Score,
		})
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal pose: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write pose fixture: %v", err)
	}
}

// stubPipelineBinaries installs an ffmpeg that emits five copies of a
// 300x300 frame and a pose command that prints a fixed pose.
func stubPipelineBinaries(t *testing.T, cfg *config.Config) {
	t.Helper()
	base := testsupport.BaseDir(cfg)
	framePath := filepath.Join(base, "fixtures", "frame.png")
	posePath := filepath.Join(base, "fixtures", "pose.json")
	testsupport.WritePNG(t, framePath, 300, 300)
	writePoseFixture(t, posePath)

	binDir := filepath.Join(base, "bin")
	testsupport.WriteExecutable(t, binDir, "ffmpeg",
		"for last; do :; done\n"+
			"i=1\n"+
			"while [ $i -le 5 ]; do\n"+
			"  cp '"+framePath+"' \"$(printf \"$last\" $i)\"\n"+
			"  i=$((i+1))\n"+
			"done\n")
	testsupport.WriteExecutable(t, binDir, cfg.Pose.Command, "cat '"+posePath+"'\n")
	testsupport.PrependPath(t, binDir)
}

func TestRunWithoutSubcommandPrintsHelp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	out, _, err := runCLI(t, nil, writeTestConfig(t, cfg))
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	requireContains(t, out, "signframes")
	requireContains(t, out, "run")
}
