package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)

	UsersFetched.Set(3)
	DocumentsWritten.WithLabelValues("insert").Add(3)
	Runs.WithLabelValues("done").Inc()

	require.Equal(t, float64(3), testutil.ToFloat64(UsersFetched))
	require.Equal(t, float64(3), testutil.ToFloat64(DocumentsWritten.WithLabelValues("insert")))

	path := filepath.Join(t.TempDir(), "usersync.prom")
	require.NoError(t, WriteTextfile(path, reg))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	require.True(t, strings.Contains(out, "usersync_directory_users_fetched 3"), out)
	require.Contains(t, out, `usersync_runs_total{state="done"}`)
}

func TestWriteTextfileEmptyPathNoop(t *testing.T) {
	require.NoError(t, WriteTextfile("", prometheus.NewRegistry()))
}
