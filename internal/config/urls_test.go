package config_test

import (
	"testing"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
)

func TestConfig_GetServiceURLs(t *testing.T) {
	tests := []struct {
		name           string
		cfg            config.Config
		wantPrintFleet string
		wantToolUsage  string
		wantCAS        string
	}{
		{
			name:           "defaults",
			cfg:            config.Config{Environment: config.EnvironmentConfig{Environment: config.Prod}},
			wantPrintFleet: "https://cloud.3dprinteros.com/apiglobal/",
			wantToolUsage:  "https://sums.gatech.edu/SUMS_React_Shift_Scheduler/rest/EGInfo/",
			wantCAS:        "https://sso.gatech.edu:443/cas",
		},
		{
			name: "overrides",
			cfg: config.Config{
				Environment: config.EnvironmentConfig{Environment: config.Local},
				PrintFleet:  config.PrintFleetConfig{BaseURL: "http://localhost:9001/"},
				ToolUsage:   config.ToolUsageConfig{BaseURL: "http://localhost:9002/"},
				CAS:         config.CASConfig{BaseURL: "http://localhost:9003/cas"},
			},
			wantPrintFleet: "http://localhost:9001/",
			wantToolUsage:  "http://localhost:9002/",
			wantCAS:        "http://localhost:9003/cas",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urls := tt.cfg.GetServiceURLs()

			if urls.PrintFleetBaseURL != tt.wantPrintFleet {
				t.Errorf("PrintFleetBaseURL = %v, want %v", urls.PrintFleetBaseURL, tt.wantPrintFleet)
			}
			if urls.ToolUsageBaseURL != tt.wantToolUsage {
				t.Errorf("ToolUsageBaseURL = %v, want %v", urls.ToolUsageBaseURL, tt.wantToolUsage)
			}
			if urls.CASBaseURL != tt.wantCAS {
				t.Errorf("CASBaseURL = %v, want %v", urls.CASBaseURL, tt.wantCAS)
			}
		})
	}
}
