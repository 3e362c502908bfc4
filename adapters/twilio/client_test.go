package twilio

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"complete", Config{AccountSID: "AC1", AuthToken: "t", FromNumber: "+15550001111"}, false},
		{"missing token", Config{AccountSID: "AC1", FromNumber: "+15550001111"}, true},
		{"missing from", Config{AccountSID: "AC1", AuthToken: "t"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCancelledContextSkipsProvider(t *testing.T) {
	c, err := New(Config{AccountSID: "AC1", AuthToken: "t", FromNumber: "+15550001111"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.PlaceCall(ctx, "+15550002222", "<Response/>"); err == nil {
		t.Error("Expected error for cancelled context")
	}
	if _, err := c.SendSMS(ctx, "+15550002222", "hi"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
