package config

const (
	defaultScratchDir             = "~/.local/share/docmill/scratch"
	defaultLogDir                 = "~/.local/share/docmill/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultProcessorCap           = 2
	defaultQueueThreshold         = 3
	defaultQueueWaitSeconds       = 300
	defaultIdleStopSeconds        = 900
	defaultIdleTerminateSeconds   = 3600
	defaultViewTTLMinutes         = 15
	defaultIngestInterval         = 60
	defaultDispatchInterval       = 30
	defaultConvertInterval        = 60
	defaultConversionPollInterval = 30
	defaultErrorRetryInterval     = 15
	defaultProvisionPollSeconds   = 10
	defaultProvisionMaxAttempts   = 30
	defaultWorkerPort             = 8080
	defaultWorkerPath             = "/process"
	defaultWorkerTimeoutSeconds   = 300
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
		},
		Pipeline: Pipeline{
			ProcessorCap:         defaultProcessorCap,
			QueueThreshold:       defaultQueueThreshold,
			QueueWaitSeconds:     defaultQueueWaitSeconds,
			IdleStopSeconds:      defaultIdleStopSeconds,
			IdleTerminateSeconds: defaultIdleTerminateSeconds,
			ViewTTLMinutes:       defaultViewTTLMinutes,
		},
		Workflow: Workflow{
			IngestInterval:         defaultIngestInterval,
			DispatchInterval:       defaultDispatchInterval,
			ConvertInterval:        defaultConvertInterval,
			ConversionPollInterval: defaultConversionPollInterval,
			ErrorRetryInterval:     defaultErrorRetryInterval,
			ProvisionPollSeconds:   defaultProvisionPollSeconds,
			ProvisionMaxAttempts:   defaultProvisionMaxAttempts,
		},
		Fleet: Fleet{
			WorkerPort:           defaultWorkerPort,
			WorkerPath:           defaultWorkerPath,
			WorkerTimeoutSeconds: defaultWorkerTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
