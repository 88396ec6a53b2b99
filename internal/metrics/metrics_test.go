package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tildeio/routerbuild/internal/metrics"
)

func TestWriteFile(t *testing.T) {
	metrics.BuildCount.Inc()
	metrics.NodeDuration.WithLabelValues("lib-amd").Observe(0.01)

	path := filepath.Join(t.TempDir(), "routerbuild.prom")
	if err := metrics.WriteFile(path); err != nil {
		t.Fatal(err)
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"routerbuild_build_count_total", `routerbuild_node_duration_seconds_count{node="lib-amd"}`} {
		if !strings.Contains(string(bs), want) {
			t.Errorf("expected %s in:\n%s", want, bs)
		}
	}
}
