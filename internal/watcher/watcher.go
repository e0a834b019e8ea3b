// Package watcher observa o diretório de entrada e move arquivos fiscais
// (.xml/.zip) pra processing, publicando o job correspondente na fila.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/borghilucas/fluitax-sub001/internal/config"
	"github.com/borghilucas/fluitax-sub001/internal/queue"
)

// Um arquivo é considerado estável quando o tamanho para de mudar; cópias
// lentas via rede precisam de mais de uma medição.
const (
	stableAttempts = 5
	stableDelay    = 200 * time.Millisecond
)

type Watcher struct {
	cfg     *config.Config
	watcher *fsnotify.Watcher
	rmq     *queue.RabbitMQ
}

func New(cfg *config.Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{cfg: cfg, watcher: fsw}

	// Ativa RabbitMQ se configurado
	if strings.ToLower(os.Getenv("FLUITAX_QUEUE_BACKEND")) == "rabbitmq" {
		url, qname := queue.URLFromEnv()

		rmq, err := queue.NewRabbitMQ(url, qname)
		if err != nil {
			return nil, err
		}
		w.rmq = rmq

		slog.Info("RabbitMQ habilitado no watcher", "url", url, "queue", qname)
	} else {
		slog.Info("fila RabbitMQ desabilitada no watcher (FLUITAX_QUEUE_BACKEND != rabbitmq)")
	}

	return w, nil
}

func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	if w.rmq != nil {
		defer w.rmq.Close()
	}

	if err := w.ensureDirs(); err != nil {
		return err
	}

	slog.Info("processando arquivos já existentes em incoming",
		"incoming_dir", w.cfg.IncomingDir,
	)
	w.scanIncoming()

	if err := w.watcher.Add(w.cfg.IncomingDir); err != nil {
		return err
	}

	slog.Info("watching diretório de entrada",
		"incoming_dir", w.cfg.IncomingDir,
	)

	errCh := make(chan error, 1)

	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					errCh <- nil
					return
				}
				w.handleEvent(event)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					errCh <- nil
					return
				}
				slog.Error("erro no watcher", "err", err)
			}
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("contexto cancelado, encerrando watcher")
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (w *Watcher) ensureDirs() error {
	dirs := []string{
		w.cfg.IncomingDir,
		w.cfg.ProcessingDir,
		w.cfg.ProcessedDir,
		w.cfg.FailedDir,
		w.cfg.TmpDir,
		w.cfg.IgnoredDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// scanIncoming cobre os arquivos que já estavam no diretório antes do
// watcher subir (fsnotify só avisa de eventos novos).
func (w *Watcher) scanIncoming() {
	entries, err := os.ReadDir(w.cfg.IncomingDir)
	if err != nil {
		slog.Error("erro lendo diretório incoming",
			"dir", w.cfg.IncomingDir,
			"err", err,
		)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.dispatch(filepath.Join(w.cfg.IncomingDir, entry.Name()))
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Chmod) == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Debug("arquivo não está mais acessível em evento, ignorando",
				"path", event.Name,
				"err", err,
			)
		}
		return
	}
	if info.IsDir() {
		return
	}

	w.dispatch(event.Name)
}

// dispatch decide o destino de um arquivo que caiu em incoming: metadata do
// Windows é removida, .xml/.zip vai pra processing (e pra fila), o resto
// pra ignored.
func (w *Watcher) dispatch(path string) {
	filename := filepath.Base(path)

	if isZoneIdentifier(filename) {
		slog.Info("arquivo de metadata (Zone.Identifier) detectado; removendo",
			"path", path,
		)
		if err := os.Remove(path); err != nil {
			slog.Warn("falha ao remover arquivo de metadata",
				"path", path,
				"err", err,
			)
		}
		return
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".xml" && ext != ".zip" {
		w.move(path, filename, w.cfg.IgnoredDir, "ignored")
		return
	}

	if !waitFileStable(path) {
		slog.Warn("arquivo não estabilizou, ignorando por enquanto",
			"path", path,
		)
		return
	}

	destPath, ok := w.move(path, filename, w.cfg.ProcessingDir, "processing")
	if !ok {
		return
	}

	w.publish(destPath, filename, strings.TrimPrefix(ext, "."))
}

// waitFileStable espera o tamanho do arquivo parar de crescer.
func waitFileStable(path string) bool {
	var lastSize int64 = -1

	for i := 0; i < stableAttempts; i++ {
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				slog.Debug("erro ao stat arquivo durante espera de estabilidade",
					"path", path,
					"err", err,
				)
			}
			return false
		}

		size := info.Size()
		if size > 0 && size == lastSize {
			return true
		}

		lastSize = size
		time.Sleep(stableDelay)
	}

	return false
}

func (w *Watcher) move(srcPath, filename, destDir, label string) (string, bool) {
	destPath := filepath.Join(destDir, filename)
	if err := os.Rename(srcPath, destPath); err != nil {
		slog.Error("erro movendo arquivo de incoming",
			"src", srcPath,
			"dest", destPath,
			"err", err,
		)
		return "", false
	}
	slog.Info("arquivo movido de incoming",
		"dest_dir", label,
		"src", srcPath,
		"dest", destPath,
	)
	return destPath, true
}

// publish envia o job pra fila quando RabbitMQ está habilitado; sem fila o
// worker acha o arquivo em processing pelo polling.
func (w *Watcher) publish(destPath, filename, kind string) {
	if w.rmq == nil {
		return
	}

	job := queue.Job{
		Path:     destPath,
		Filename: filename,
		Kind:     kind, // "xml" ou "zip"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.rmq.PublishJob(ctx, job); err != nil {
		slog.Error("erro publicando job no RabbitMQ",
			"path", destPath,
			"kind", kind,
			"err", err,
		)
		return
	}

	slog.Info("job publicado no RabbitMQ",
		"path", destPath,
		"kind", kind,
	)
}

func isZoneIdentifier(name string) bool {
	return strings.Contains(strings.ToLower(name), "zone.identifier")
}
