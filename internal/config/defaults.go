package config

const (
	defaultConfigPath       = "~/.config/signframes/config.toml"
	defaultStateJSONName    = "state.json"
	defaultStateSQLiteName  = "state.db"
	defaultDatasetKind      = DatasetNZSL
	defaultCropSize         = 100
	defaultQualityThreshold = 0.5
	defaultSelector         = SelectorHandshapes
	defaultLabeler          = LabelerHandshapes
	defaultImageFormat      = "png"
	defaultParallelism      = 4
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultGamma            = 2.5
	defaultContrast         = 1.1
	defaultGammaWeight      = 0.3
	defaultMinFreeSpaceMiB  = 512
	defaultPoseBackend      = PoseBackendCommand
	defaultPoseCommand      = "posenet-estimate"
	defaultPoseTimeout      = 30
	defaultImageScaleFactor = 0.5
	defaultOutputStride     = 16
	defaultPoseMultiplier   = 0.75
	defaultStateBackend     = StateBackendJSON
	defaultNtfyTimeout      = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	outputDirEnv            = "SIGNFRAMES_OUTPUT_DIR"
	poseURLEnv              = "SIGNFRAMES_POSE_URL"
)

// Recognized dataset kinds.
const (
	DatasetNZSL    = "nzsl"
	DatasetFolders = "folders"
)

// Recognized task selection and labeling strategies.
const (
	SelectorHandshapes = "handshapes"
	SelectorAll        = "all"
	LabelerHandshapes  = "handshapes"
	LabelerDefinition  = "definition"
)

// Recognized pose-estimator backends.
const (
	PoseBackendCommand = "command"
	PoseBackendHTTP    = "http"
)

// Recognized state persistence backends.
const (
	StateBackendJSON   = "json"
	StateBackendSQLite = "sqlite"
)

// strategyDefaults returns the selector and labeler for a dataset kind.
// Folder entries carry no handshapes, so they select everything and label
// by folder name.
func strategyDefaults(kind string) (selector, labeler string) {
	if kind == DatasetFolders {
		return SelectorAll, LabelerDefinition
	}
	return defaultSelector, defaultLabeler
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Dataset: Dataset{
			Kind: defaultDatasetKind,
		},
		Extraction: Extraction{
			Keypoints:        []string{"fakeLeftHand", "fakeRightHand"},
			CropSize:         defaultCropSize,
			QualityThreshold: defaultQualityThreshold,
			Selector:         defaultSelector,
			Labeler:          defaultLabeler,
			ImageFormat:      defaultImageFormat,
			Parallelism:      defaultParallelism,
		},
		Video: Video{
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			Gamma:           defaultGamma,
			Contrast:        defaultContrast,
			GammaWeight:     defaultGammaWeight,
			MinFreeSpaceMiB: defaultMinFreeSpaceMiB,
		},
		Pose: Pose{
			Backend:          defaultPoseBackend,
			Command:          defaultPoseCommand,
			TimeoutSeconds:   defaultPoseTimeout,
			ImageScaleFactor: defaultImageScaleFactor,
			OutputStride:     defaultOutputStride,
			Multiplier:       defaultPoseMultiplier,
		},
		State: State{
			Backend: defaultStateBackend,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Enabled: true,
			Format:  defaultLogFormat,
			Level:   defaultLogLevel,
		},
	}
}
