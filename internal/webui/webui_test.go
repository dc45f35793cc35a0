package webui

import (
	"bytes"
	"testing"
)

func TestIndexTargetsSamplingAPI(t *testing.T) {
	t.Parallel()
	page := Index()
	for _, want := range []string{"<html", "/v1/samples", "/v1/state/reset", "/v1/model"} {
		if !bytes.Contains(page, []byte(want)) {
			t.Fatalf("index page is missing %q", want)
		}
	}
}
