package logger_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Namanahuja82/koinx-backend-assignment/internal/lib/logger"
)

func TestNew(t *testing.T) {
	tests := []struct {
		env       string
		wantDebug bool
	}{
		{env: logger.EnvLocal, wantDebug: true},
		{env: logger.EnvDev, wantDebug: true},
		{env: logger.EnvProd, wantDebug: false},
		{env: "", wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			log, zl, sync := logger.New(tt.env)
			require.NotNil(t, log)
			require.NotNil(t, zl)
			require.NotNil(t, sync)

			assert.Equal(t, tt.wantDebug, log.Enabled(t.Context(), slog.LevelDebug))
			assert.True(t, log.Enabled(t.Context(), slog.LevelInfo))
		})
	}
}
