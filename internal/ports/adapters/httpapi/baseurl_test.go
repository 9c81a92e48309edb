package httpapi

import "testing"

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name         string
		baseURL      string
		allowedHosts []string
		wantErr      bool
	}{
		{
			name:    "default local backend",
			baseURL: "",
		},
		{
			name:    "localhost over http",
			baseURL: "http://localhost:5013/",
		},
		{
			name:    "remote host with https",
			baseURL: "https://transcribe.example.com",
		},
		{
			name:    "reject http for remote host",
			baseURL: "http://transcribe.example.com",
			wantErr: true,
		},
		{
			name:    "reject non-absolute URL",
			baseURL: "transcribe.example.com",
			wantErr: true,
		},
		{
			name:    "reject userinfo",
			baseURL: "https://u:p@transcribe.example.com",
			wantErr: true,
		},
		{
			name:    "reject query",
			baseURL: "https://transcribe.example.com?x=1",
			wantErr: true,
		},
		{
			name:    "reject ftp",
			baseURL: "ftp://127.0.0.1",
			wantErr: true,
		},
		{
			name:         "allow listed host",
			baseURL:      "https://proxy.internal",
			allowedHosts: []string{"https://proxy.internal:443/"},
		},
		{
			name:         "reject unlisted host",
			baseURL:      "https://evil.example",
			allowedHosts: []string{"proxy.internal"},
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBaseURL(tt.baseURL, tt.allowedHosts)
			if tt.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestHostSet(t *testing.T) {
	got := hostSet([]string{" ", "https://", "http://", "Proxy.Internal:8443/", "https://[::1]:5013", "api.example.com"})
	want := []string{"proxy.internal", "::1", "api.example.com"}
	if len(got) != len(want) {
		t.Fatalf("expected %d hosts, got %v", len(want), got)
	}
	for _, h := range want {
		if !got[h] {
			t.Fatalf("missing %q in %v", h, got)
		}
	}
}
