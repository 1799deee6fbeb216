package bootstrap

import (
	"testing"

	"github.com/linkhound/ingest/config"
)

func TestErrorBufferSize(t *testing.T) {
	tests := []struct {
		name    string
		enabled map[config.ServiceMode]bool
		want    int
	}{
		{
			name: "no services enabled",
			want: 1,
		},
		{
			name:    "http only",
			enabled: map[config.ServiceMode]bool{config.ServiceModeHTTP: true},
			want:    2,
		},
		{
			name: "disabled modes do not count",
			enabled: map[config.ServiceMode]bool{
				config.ServiceModeHTTP:      true,
				config.ServiceModeScheduler: false,
			},
			want: 2,
		},
		{
			name: "all services enabled",
			enabled: map[config.ServiceMode]bool{
				config.ServiceModeHTTP:         true,
				config.ServiceModeScheduler:    true,
				config.ServiceModeReaper:       true,
				config.ServiceModeIngestRunner: true,
			},
			want: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorBufferSize(tt.enabled); got != tt.want {
				t.Fatalf("errorBufferSize() = %d, want %d", got, tt.want)
			}
		})
	}
}
