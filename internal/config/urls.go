package config

// ServiceURLs contains the base URLs of the upstream systems and the SSO server.
type ServiceURLs struct {
	// PrintFleetBaseURL is the base URL of the print fleet API.
	PrintFleetBaseURL string
	// ToolUsageBaseURL is the base URL of the tool usage API.
	ToolUsageBaseURL string
	// CASBaseURL is the base URL of the CAS server.
	CASBaseURL string
}

const (
	printFleetURL = "https://cloud.3dprinteros.com/apiglobal/"
	toolUsageURL  = "https://sums.gatech.edu/SUMS_React_Shift_Scheduler/rest/EGInfo/"
	casURL        = "https://sso.gatech.edu:443/cas"
)

// GetServiceURLs returns the upstream URLs. The vendors expose a single
// environment, so every deployment shares the defaults unless a BASE_URL
// setting overrides them (tests and LOCAL runs point these at stubs).
//
// Example usage:
//
//	cfg, _ := config.Load()
//	urls := cfg.GetServiceURLs()
//	client := printfleet.NewClient(urls.PrintFleetBaseURL, cfg.PrintFleet.Username,
//		cfg.PrintFleet.Password, cfg.PrintFleet.Timeout, logger, metrics)
func (c *Config) GetServiceURLs() ServiceURLs {
	urls := ServiceURLs{
		PrintFleetBaseURL: printFleetURL,
		ToolUsageBaseURL:  toolUsageURL,
		CASBaseURL:        casURL,
	}

	if c.PrintFleet.BaseURL != "" {
		urls.PrintFleetBaseURL = c.PrintFleet.BaseURL
	}
	if c.ToolUsage.BaseURL != "" {
		urls.ToolUsageBaseURL = c.ToolUsage.BaseURL
	}
	if c.CAS.BaseURL != "" {
		urls.CASBaseURL = c.CAS.BaseURL
	}
	return urls
}
