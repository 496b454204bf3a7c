package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/soumetsu-project/soumetsu/internal/config"
)

func TestPrintValidation(t *testing.T) {
	var buf bytes.Buffer
	printValidation(&buf, &config.ValidationResult{})
	if !strings.Contains(buf.String(), "valid") {
		t.Errorf("clean result printed %q", buf.String())
	}

	buf.Reset()
	result := &config.ValidationResult{}
	result.AddError("server.http_port", "invalid port")
	result.AddWarning("security.admin_token", "admin API is disabled")
	printValidation(&buf, result)
	for _, want := range []string{"server.http_port", "warning", "admin API is disabled"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestChannels(t *testing.T) {
	got := channels([]config.ChannelConfig{{Name: "#osu", Topic: "t", AutoJoin: true}})
	if len(got) != 1 || got[0].Name != "#osu" || !got[0].AutoJoin || got[0].Topic != "t" {
		t.Errorf("channels = %+v", got)
	}
}
