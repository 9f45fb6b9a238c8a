package config

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

const (
	defaultConfigPath             = "~/.config/carprobe/config.toml"
	defaultDataDir                = "~/.local/share/carprobe"
	defaultLogDir                 = "~/.local/share/carprobe/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLLMBaseURL             = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel               = "gpt-4o-mini"
	defaultLLMTitle               = "carprobe"
	defaultLLMTimeoutSeconds      = 60
	defaultVisionMinConfidence    = 0.6
	defaultVisionTimeoutSeconds   = 30
	defaultAdvisoryMaxSummary     = 1200
	defaultAdvisoryTimeoutSeconds = 60
	defaultDVLABaseURL            = "https://driver-vehicle-licensing.api.gov.uk/vehicle-enquiry/v1/vehicles"
	defaultMOTBaseURL             = "https://beta.check-mot.service.gov.uk/trade/vehicles/mot-tests"
	defaultServiceTimeoutSeconds  = 10
	defaultWorkers                = 2
	defaultPollInterval           = 5
	defaultErrorRetryInterval     = 10
	defaultLeaseTimeout           = 300
	defaultStageTimeout           = 120
	defaultNtfyRequestTimeout     = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Environment: Environment{
			Mode: ModeDevelopment,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Vision: Vision{
			Enabled:        true,
			MinConfidence:  defaultVisionMinConfidence,
			TimeoutSeconds: defaultVisionTimeoutSeconds,
		},
		Advisory: Advisory{
			Enabled:         true,
			MaxSummaryChars: defaultAdvisoryMaxSummary,
			TimeoutSeconds:  defaultAdvisoryTimeoutSeconds,
		},
		DVLA: Service{
			BaseURL:        defaultDVLABaseURL,
			TimeoutSeconds: defaultServiceTimeoutSeconds,
		},
		MOT: Service{
			BaseURL:        defaultMOTBaseURL,
			TimeoutSeconds: defaultServiceTimeoutSeconds,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			LeaseTimeout:       defaultLeaseTimeout,
			StageTimeout:       defaultStageTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
