package worker

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/borghilucas/fluitax-sub001/internal/config"
	"github.com/borghilucas/fluitax-sub001/internal/fiscal"
	"github.com/borghilucas/fluitax-sub001/internal/metrics"
	"github.com/borghilucas/fluitax-sub001/internal/queue"
	"github.com/borghilucas/fluitax-sub001/internal/storage"
)

// Worker consome jobs (ou faz polling do diretório) e leva cada documento
// fiscal do XML bruto até o banco: parse, roteamento por tipo, persistência
// e movimentação do arquivo pro destino final.
type Worker struct {
	cfg      *config.Config
	db       *sql.DB
	interval time.Duration

	rmq *queue.RabbitMQ
}

// fileResult resume o destino de um documento dentro de um lote.
type fileResult int

const (
	resultInserted fileResult = iota
	resultDuplicate
	resultIgnored
	resultFailed
)

func New(cfg *config.Config, db *sql.DB) *Worker {
	w := &Worker{
		cfg:      cfg,
		db:       db,
		interval: 2 * time.Second,
	}

	backend := strings.ToLower(os.Getenv("FLUITAX_QUEUE_BACKEND"))
	if backend == "rabbitmq" {
		url, qname := queue.URLFromEnv()

		rmq, err := queue.NewRabbitMQ(url, qname)
		if err != nil {
			slog.Error("erro criando cliente RabbitMQ no worker; caindo para modo polling",
				"err", err,
			)
		} else {
			w.rmq = rmq
			slog.Info("RabbitMQ habilitado no worker",
				"url", url,
				"queue", qname,
			)
		}
	} else {
		slog.Info("fila RabbitMQ desabilitada no worker (FLUITAX_QUEUE_BACKEND != rabbitmq)")
	}

	return w
}

func (w *Worker) Run(ctx context.Context) error {
	// garante diretórios
	dirs := []string{
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

	if w.rmq != nil {
		defer w.rmq.Close()
		slog.Info("worker rodando em modo fila (RabbitMQ)",
			"processing_dir", w.cfg.ProcessingDir,
		)
		return w.rmq.ConsumeJobs(ctx, w.handleJob)
	}

	slog.Info("worker rodando em modo polling de diretório",
		"processing_dir", w.cfg.ProcessingDir,
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("contexto cancelado, encerrando worker")
			return ctx.Err()
		case <-ticker.C:
			w.processProcessingFolder()
		}
	}
}

func (w *Worker) handleJob(job queue.Job) error {
	info, err := os.Stat(job.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("arquivo do job não existe mais, ignorando",
				"path", job.Path,
				"filename", job.Filename,
				"kind", job.Kind,
			)
			return nil
		}
		slog.Error("erro ao stat arquivo do job",
			"path", job.Path,
			"err", err,
		)
		return nil
	}
	if info.IsDir() {
		return nil
	}

	switch strings.ToLower(job.Kind) {
	case "xml":
		w.processXML(job.Path, job.Filename)
	case "zip":
		w.processZIP(job.Path, job.Filename)
	default:
		slog.Warn("tipo de job desconhecido",
			"path", job.Path,
			"filename", job.Filename,
			"kind", job.Kind,
		)
	}

	return nil
}

// ----------------------------------------------------------------------
// Modo polling (legado)
// ----------------------------------------------------------------------

func (w *Worker) processProcessingFolder() {
	entries, err := os.ReadDir(w.cfg.ProcessingDir)
	if err != nil {
		slog.Error("erro lendo diretório processing", "dir", w.cfg.ProcessingDir, "err", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		srcPath := filepath.Join(w.cfg.ProcessingDir, entry.Name())
		filename := filepath.Base(srcPath)
		ext := strings.ToLower(filepath.Ext(filename))

		switch ext {
		case ".xml":
			w.processXML(srcPath, filename)
		case ".zip":
			w.processZIP(srcPath, filename)
		default:
			slog.Info("extensão não tratada em processing; movendo para processed",
				"path", srcPath,
				"ext", ext,
			)
			w.moveTo(w.cfg.ProcessedDir, srcPath, filename)
		}
	}
}

// ----------------------------------------------------------------------
// Processamento de um documento
// ----------------------------------------------------------------------

// processXML trata um XML solto: o resultado decide o diretório de destino.
func (w *Worker) processXML(srcPath, filename string) {
	res := w.processDocument(srcPath, filename, "xml")
	w.moveTo(w.destDir(res), srcPath, filename)
}

// destDir mapeia o resultado do documento pro diretório final. Duplicado e
// ignorado terminam no mesmo lugar, mas são contados separado no lote.
func (w *Worker) destDir(res fileResult) string {
	switch res {
	case resultInserted:
		return w.cfg.ProcessedDir
	case resultDuplicate, resultIgnored:
		return w.cfg.IgnoredDir
	default:
		return w.cfg.FailedDir
	}
}

// processDocument faz parse + persistência e devolve o resumo pro contador
// do lote. Métricas são observadas aqui, por documento.
func (w *Worker) processDocument(srcPath, filename, source string) fileResult {
	start := time.Now()
	kind := "unknown"
	status := "inserted"
	defer func() {
		metrics.ObserveDocument(kind, status, source, time.Since(start))
	}()

	data, err := os.ReadFile(srcPath)
	if err != nil {
		status = "read_error"
		slog.Error("erro lendo XML", "path", srcPath, "err", err)
		return resultFailed
	}

	// Validação XSD opcional, controlada por env (desligada por padrão).
	if err := validateXSDIfEnabled(data); err != nil {
		status = "xsd_error"
		slog.Error("XML reprovado na validação XSD", "path", srcPath, "err", err)
		return resultFailed
	}

	result, err := fiscal.ParseUploadXML(string(data))
	if err != nil {
		status = "parse_error"
		var perr *fiscal.ParseError
		if errors.As(err, &perr) {
			slog.Error("erro ao parsear documento fiscal",
				"path", srcPath,
				"code", perr.Code,
				"err", err,
			)
		} else {
			slog.Error("erro ao parsear documento fiscal", "path", srcPath, "err", err)
		}
		return resultFailed
	}

	kind = strings.ToLower(string(result.Kind))

	switch result.Kind {
	case fiscal.KindNFSe:
		// NFS-e não passa por extração: só sai do fluxo.
		status = "ignored"
		slog.Info("NFS-e detectada, documento ignorado", "path", srcPath)
		return resultIgnored

	case fiscal.KindCancelamento:
		_, err = storage.SaveEvento(w.db, result.Cancelamento)

	case fiscal.KindCTe:
		_, err = storage.SaveCTe(w.db, result.CTe, data)

	default:
		inv := result.Invoice
		slog.Info("nota fiscal parseada",
			"path", srcPath,
			"chave", inv.Chave,
			"emitente_cnpj", inv.EmitenteCNPJ,
			"total", inv.TotalNFe,
			"itens", len(inv.Itens),
			"ignorada", inv.Ignorada,
		)
		_, err = storage.SaveInvoice(w.db, inv, data)
	}

	if err != nil {
		if errors.Is(err, storage.ErrDocumentoJaExiste) {
			status = "duplicate"
			slog.Info("documento já existia no banco, ignorando reprocessamento",
				"path", srcPath,
				"kind", kind,
			)
			return resultDuplicate
		}

		status = "db_error"
		slog.Error("erro salvando documento fiscal no banco",
			"path", srcPath,
			"kind", kind,
			"err", err,
		)
		return resultFailed
	}

	return resultInserted
}

// ----------------------------------------------------------------------
// Lotes ZIP
// ----------------------------------------------------------------------

func (w *Worker) processZIP(srcPath, filename string) {
	slog.Info("ZIP identificado, iniciando extração e processamento",
		"path", srcPath,
	)

	ext := filepath.Ext(filename)
	baseName := strings.TrimSuffix(filename, ext)

	workDir := filepath.Join(w.cfg.TmpDir, baseName)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		slog.Error("erro criando diretório temporário para ZIP",
			"zip", srcPath,
			"work_dir", workDir,
			"err", err,
		)
		_ = os.Remove(srcPath)
		return
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			slog.Warn("falha ao remover diretório temporário",
				"work_dir", workDir,
				"err", err,
			)
		}
	}()

	zr, err := zip.OpenReader(srcPath)
	if err != nil {
		slog.Error("erro abrindo ZIP",
			"path", srcPath,
			"err", err,
		)
		_ = os.Remove(srcPath)
		return
	}
	defer zr.Close()

	if len(zr.File) == 0 {
		slog.Warn("ZIP está vazio",
			"path", srcPath,
		)
		_ = os.Remove(srcPath)
		return
	}

	var (
		xmlCount     int
		successCount int
		dupCount     int
		ignoredCount int
		failCount    int
	)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		name := f.Name
		if !strings.HasSuffix(strings.ToLower(name), ".xml") {
			slog.Info("arquivo dentro do ZIP ignorado (não é XML)",
				"zip", srcPath,
				"inner_name", name,
			)
			continue
		}

		xmlCount++

		innerFileName := filepath.Base(name)
		innerPath := filepath.Join(workDir, innerFileName)

		if err := extractZipEntry(f, innerPath); err != nil {
			slog.Error("erro extraindo entrada do ZIP",
				"zip", srcPath,
				"inner_name", name,
				"err", err,
			)
			failCount++
			continue
		}

		res := w.processDocument(innerPath, innerFileName, "zip")
		switch res {
		case resultInserted:
			successCount++
		case resultDuplicate:
			dupCount++
		case resultIgnored:
			ignoredCount++
		default:
			failCount++
		}
		w.moveTo(w.destDir(res), innerPath, innerFileName)
	}

	if err := os.Remove(srcPath); err != nil {
		slog.Warn("falha ao remover ZIP original após processamento",
			"path", srcPath,
			"err", err,
		)
	}

	// Auditoria do lote: contadores por arquivo de upload.
	if err := storage.SaveLote(w.db, filename, xmlCount, successCount, dupCount, ignoredCount, failCount); err != nil {
		slog.Error("erro registrando auditoria do lote", "zip", filename, "err", err)
	}

	slog.Info("processamento de ZIP concluído",
		"zip", srcPath,
		"xml_total", xmlCount,
		"inseridos", successCount,
		"duplicados", dupCount,
		"ignorados", ignoredCount,
		"falhados", failCount,
	)
}

func extractZipEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

// ----------------------------------------------------------------------
// Movimentação de arquivos
// ----------------------------------------------------------------------

func (w *Worker) moveTo(destDir, srcPath, filename string) {
	destPath := filepath.Join(destDir, filename)
	if err := os.Rename(srcPath, destPath); err != nil {
		slog.Error("erro movendo arquivo",
			"src", srcPath,
			"dest", destPath,
			"err", err,
		)
		return
	}
	slog.Info("arquivo movido",
		"src", srcPath,
		"dest", destPath,
	)
}
