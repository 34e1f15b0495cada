package config

const (
	defaultDataDir          = "~/.local/share/facecam"
	defaultLogDir           = "~/.local/share/facecam/logs"
	defaultSocketName       = "facecam.sock"
	defaultLogRetentionDays = 30
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"

	defaultCameraSource = SourceV4L2
	defaultCameraDevice = "/dev/video0"
	defaultCameraWidth  = 640
	defaultCameraHeight = 480
	defaultCameraFPS    = 30

	defaultCascadePath      = "~/.local/share/facecam/cascade/facefinder"
	defaultMinSize          = 40
	defaultMaxSize          = 600
	defaultShiftFactor      = 0.1
	defaultScaleFactor      = 1.1
	defaultIoUThreshold     = 0.2
	defaultMinQuality       = 5.0
	defaultRequestTimeoutMS = 2000

	defaultRecordingEncoder   = EncoderMJPEG
	defaultRecordingFPS       = 15
	defaultRecordingMediaType = "video/x-motion-jpeg"
	defaultTimesliceMS        = 1000
	defaultJPEGQuality        = 80

	defaultMaxTotalMB = 2048
	defaultMaxVideos  = 0

	// CameraDeviceEnv overrides camera.device when set.
	CameraDeviceEnv = "FACECAM_CAMERA_DEVICE"
)

// Frame source kinds.
const (
	SourceV4L2    = "v4l2"
	SourcePattern = "pattern"
)

// Encoder kinds.
const (
	EncoderMJPEG  = "mjpeg"
	EncoderFFmpeg = "ffmpeg"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Camera: Camera{
			Source: defaultCameraSource,
			Device: defaultCameraDevice,
			Width:  defaultCameraWidth,
			Height: defaultCameraHeight,
			FPS:    defaultCameraFPS,
		},
		Detector: Detector{
			Enabled:          true,
			CascadePath:      defaultCascadePath,
			MinSize:          defaultMinSize,
			MaxSize:          defaultMaxSize,
			ShiftFactor:      defaultShiftFactor,
			ScaleFactor:      defaultScaleFactor,
			IoUThreshold:     defaultIoUThreshold,
			MinQuality:       defaultMinQuality,
			RequestTimeoutMS: defaultRequestTimeoutMS,
		},
		Recording: Recording{
			Encoder:     defaultRecordingEncoder,
			FPS:         defaultRecordingFPS,
			MediaType:   defaultRecordingMediaType,
			TimesliceMS: defaultTimesliceMS,
			JPEGQuality: defaultJPEGQuality,
		},
		Storage: Storage{
			MaxTotalMB: defaultMaxTotalMB,
			MaxVideos:  defaultMaxVideos,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
