package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/borghilucas/fluitax-sub001/internal/config"
)

func TestDestDir(t *testing.T) {
	w := &Worker{cfg: &config.Config{
		ProcessedDir: "/data/processed",
		IgnoredDir:   "/data/ignored",
		FailedDir:    "/data/failed",
	}}

	tests := []struct {
		name string
		res  fileResult
		want string
	}{
		{name: "inserido", res: resultInserted, want: "/data/processed"},
		{name: "duplicado", res: resultDuplicate, want: "/data/ignored"},
		{name: "ignorado (NFS-e)", res: resultIgnored, want: "/data/ignored"},
		{name: "falhado", res: resultFailed, want: "/data/failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.destDir(tt.res))
		})
	}
}

func TestFileResultsDistintos(t *testing.T) {
	// Duplicado e ignorado dividem o diretório final, mas são resultados
	// distintos: o lote conta cada um na sua coluna.
	assert.NotEqual(t, resultDuplicate, resultIgnored)
}
