package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/borghilucas/fluitax-sub001/internal/cfop"
	"github.com/borghilucas/fluitax-sub001/internal/fiscal"
)

// ErrDocumentoJaExiste indica que o documento já está no banco (chave única).
var ErrDocumentoJaExiste = errors.New("documento já existe")

// SaveInvoice insere a nota e os itens em uma única transação.
func SaveInvoice(db *sql.DB, inv *fiscal.ParsedInvoice, xmlRaw []byte) (id int64, err error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("erro iniciando transação: %w", err)
	}

	// Se der erro em qualquer parte, rollback.
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	id, err = insertInvoice(tx, inv, xmlRaw)
	if err != nil {
		if errors.Is(err, ErrDocumentoJaExiste) {
			return 0, ErrDocumentoJaExiste
		}
		return 0, err
	}

	if err = insertItens(tx, id, inv.Itens); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("erro no commit da transação: %w", err)
	}

	slog.Info("nota fiscal persistida",
		"nota_id", id,
		"chave", inv.Chave,
		"itens", len(inv.Itens),
		"cancelada", inv.Cancelada,
		"ignorada", inv.Ignorada,
	)

	return id, nil
}

func insertInvoice(tx *sql.Tx, inv *fiscal.ParsedInvoice, xmlRaw []byte) (int64, error) {
	var id int64

	total, err := requiredNumeric(inv.TotalNFe, "valor_total")
	if err != nil {
		return 0, err
	}

	const q = `
INSERT INTO nota_fiscal (
	chave,
	emissao,
	entrada_saida,
	tp_nf,
	natureza_operacao,
	numero,
	serie,
	emitente_cnpj,
	dest_cnpj,
	dest_razao,
	dest_municipio,
	dest_uf,
	valor_total,
	protocolo_status,
	protocolo_motivo,
	protocolo_numero,
	protocolo_recebido_em,
	cancelada,
	ignorada,
	motivo_ignorar,
	xml_raw
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,
	$8,$9,$10,$11,$12,
	$13,
	$14,$15,$16,$17,
	$18,$19,$20,$21
)
RETURNING id;
`

	protoStatus, protoMotivo, protoNumero := "", "", ""
	var protoRecebido *time.Time
	if inv.Protocolo != nil {
		protoStatus = inv.Protocolo.CodigoStatus
		protoMotivo = inv.Protocolo.Motivo
		protoNumero = inv.Protocolo.Numero
		protoRecebido = inv.Protocolo.RecebidoEm
	}

	qerr := tx.QueryRow(
		q,
		inv.Chave,
		inv.Emissao,
		nullableTime(inv.EntradaSaida),
		nullableString(inv.TpNF),
		inv.NatOp,
		nullableString(inv.Numero),
		nullableString(inv.Serie),
		inv.EmitenteCNPJ,
		inv.DestCNPJ,
		nullableString(inv.DestRazao),
		nullableString(inv.DestMunicipio),
		nullableString(inv.DestUF),
		total,
		nullableString(protoStatus),
		nullableString(protoMotivo),
		nullableString(protoNumero),
		nullableTime(protoRecebido),
		inv.Cancelada,
		inv.Ignorada,
		nullableString(inv.MotivoIgnorar),
		string(xmlRaw),
	).Scan(&id)

	if qerr != nil {
		if isUniqueViolation(qerr) {
			slog.Warn("nota fiscal já existe no banco, ignorando reprocessamento",
				"chave", inv.Chave,
			)
			return 0, ErrDocumentoJaExiste
		}
		return 0, fmt.Errorf("erro inserindo nota fiscal (chave=%s): %w", inv.Chave, qerr)
	}

	return id, nil
}

func insertItens(tx *sql.Tx, notaID int64, itens []fiscal.ParsedItem) error {
	const q = `
INSERT INTO nota_fiscal_item (
	nota_fiscal_id,
	n_item,
	cfop,
	cfop_descricao,
	ncm,
	cst,
	codigo,
	descricao,
	unidade,
	quantidade,
	valor_unit,
	valor_bruto,
	valor_desconto,
	base_icms,
	valor_icms,
	deducao_icms,
	base_icms_st,
	valor_icms_st,
	valor_ipi,
	valor_pis,
	valor_cofins
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,
	$10,$11,$12,$13,
	$14,$15,$16,$17,$18,$19,$20,$21
);
`

	for i, it := range itens {
		qtd, err := requiredNumeric(it.Quantidade, fmt.Sprintf("quantidade do item %d", i+1))
		if err != nil {
			return err
		}
		unit, err := requiredNumeric(it.ValorUnitario, fmt.Sprintf("valor unitário do item %d", i+1))
		if err != nil {
			return err
		}
		bruto, err := requiredNumeric(it.ValorBruto, fmt.Sprintf("valor bruto do item %d", i+1))
		if err != nil {
			return err
		}
		desconto, err := requiredNumeric(it.ValorDesconto, fmt.Sprintf("desconto do item %d", i+1))
		if err != nil {
			return err
		}

		_, err = tx.Exec(
			q,
			notaID,
			i+1,
			it.CFOP,
			nullableString(cfop.Describe(it.CFOP)),
			nullableString(it.NCM),
			nullableString(it.CST),
			nullableString(it.Codigo),
			nullableString(it.Descricao),
			nullableString(it.Unidade),
			qtd,
			unit,
			bruto,
			desconto,
			nullableNumeric(it.BaseICMS),
			nullableNumeric(it.ValorICMS),
			nullableNumeric(it.DeducaoICMS),
			nullableNumeric(it.BaseICMSST),
			nullableNumeric(it.ValorICMSST),
			nullableNumeric(it.ValorIPI),
			nullableNumeric(it.ValorPIS),
			nullableNumeric(it.ValorCOFINS),
		)
		if err != nil {
			return fmt.Errorf("erro inserindo item %d da nota_id=%d: %w", i+1, notaID, err)
		}
	}

	return nil
}

// SaveCTe insere o conhecimento de transporte.
func SaveCTe(db *sql.DB, cte *fiscal.ParsedCTe, xmlRaw []byte) (int64, error) {
	valor, err := requiredNumeric(cte.ValorPrestacao, "valor_prestacao")
	if err != nil {
		return 0, err
	}

	const q = `
INSERT INTO cte (
	chave,
	emissao,
	numero,
	serie,
	cfop,
	natureza_operacao,
	emitente_cnpj,
	emitente_razao,
	emitente_municipio,
	emitente_uf,
	dest_cnpj,
	dest_razao,
	dest_municipio,
	dest_uf,
	valor_prestacao,
	valor_receber,
	peso_carga,
	unidade_peso,
	protocolo_status,
	protocolo_motivo,
	protocolo_numero,
	protocolo_recebido_em,
	cancelada,
	xml_raw
) VALUES (
	$1,$2,$3,$4,$5,$6,
	$7,$8,$9,$10,
	$11,$12,$13,$14,
	$15,$16,$17,$18,
	$19,$20,$21,$22,
	$23,$24
)
RETURNING id;
`

	protoStatus, protoMotivo, protoNumero := "", "", ""
	var protoRecebido *time.Time
	if cte.Protocolo != nil {
		protoStatus = cte.Protocolo.CodigoStatus
		protoMotivo = cte.Protocolo.Motivo
		protoNumero = cte.Protocolo.Numero
		protoRecebido = cte.Protocolo.RecebidoEm
	}

	var id int64
	qerr := db.QueryRow(
		q,
		cte.Chave,
		cte.Emissao,
		nullableString(cte.Numero),
		nullableString(cte.Serie),
		nullableString(cte.CFOP),
		cte.NatOp,
		cte.EmitenteCNPJ,
		nullableString(cte.EmitenteRazao),
		nullableString(cte.EmitenteMunicipio),
		nullableString(cte.EmitenteUF),
		cte.DestCNPJ,
		nullableString(cte.DestRazao),
		nullableString(cte.DestMunicipio),
		nullableString(cte.DestUF),
		valor,
		nullableNumeric(cte.ValorReceber),
		nullableNumeric(cte.PesoCarga),
		nullableString(cte.UnidadePeso),
		nullableString(protoStatus),
		nullableString(protoMotivo),
		nullableString(protoNumero),
		nullableTime(protoRecebido),
		cte.Cancelada,
		string(xmlRaw),
	).Scan(&id)

	if qerr != nil {
		if isUniqueViolation(qerr) {
			slog.Warn("CT-e já existe no banco, ignorando reprocessamento",
				"chave", cte.Chave,
			)
			return 0, ErrDocumentoJaExiste
		}
		return 0, fmt.Errorf("erro inserindo cte (chave=%s): %w", cte.Chave, qerr)
	}

	slog.Info("CT-e persistido",
		"cte_id", id,
		"chave", cte.Chave,
		"cancelada", cte.Cancelada,
	)

	return id, nil
}

// SaveEvento registra o evento de cancelamento e, se homologado, marca o
// documento referenciado como cancelado (nota ou CT-e, o que a chave achar).
func SaveEvento(db *sql.DB, ev *fiscal.EventoCancelamento) (int64, error) {
	const q = `
INSERT INTO evento_cancelamento (
	chave,
	tipo_evento,
	sequencia,
	codigo_status,
	motivo,
	numero_protocolo,
	data_evento,
	recebido_em,
	justificativa,
	aprovado
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
RETURNING id;
`

	var id int64
	err := db.QueryRow(
		q,
		ev.Chave,
		nullableString(ev.TipoEvento),
		nullableString(ev.Sequencia),
		nullableString(ev.CodigoStatus),
		nullableString(ev.Motivo),
		nullableString(ev.NumeroProtocolo),
		nullableTime(ev.DataEvento),
		nullableTime(ev.RecebidoEm),
		nullableString(ev.Justificativa),
		ev.Aprovado,
	).Scan(&id)

	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDocumentoJaExiste
		}
		return 0, fmt.Errorf("erro inserindo evento de cancelamento (chave=%s): %w", ev.Chave, err)
	}

	if ev.Aprovado {
		if err := applyCancelamento(db, ev.Chave); err != nil {
			return 0, err
		}
	}

	slog.Info("evento de cancelamento persistido",
		"evento_id", id,
		"chave", ev.Chave,
		"aprovado", ev.Aprovado,
	)

	return id, nil
}

// applyCancelamento propaga o cancelamento homologado pro documento já
// persistido. Evento pode chegar antes do documento; nesse caso não há
// nada pra atualizar e o flag fica só no evento.
func applyCancelamento(db *sql.DB, chave string) error {
	if _, err := db.Exec(`UPDATE nota_fiscal SET cancelada = TRUE, updated_at = CURRENT_TIMESTAMP(3) WHERE chave = $1;`, chave); err != nil {
		return fmt.Errorf("erro marcando nota como cancelada (chave=%s): %w", chave, err)
	}
	if _, err := db.Exec(`UPDATE cte SET cancelada = TRUE, updated_at = CURRENT_TIMESTAMP(3) WHERE chave = $1;`, chave); err != nil {
		return fmt.Errorf("erro marcando cte como cancelado (chave=%s): %w", chave, err)
	}
	return nil
}

// SaveLote registra os contadores de um lote de upload (auditoria).
// Ignorados (NFS-e) contam separado de duplicados.
func SaveLote(db *sql.DB, arquivo string, total, inseridos, duplicados, ignorados, falhados int) error {
	const q = `
INSERT INTO lote_upload (arquivo, total, inseridos, duplicados, ignorados, falhados)
VALUES ($1,$2,$3,$4,$5,$6);
`
	if _, err := db.Exec(q, arquivo, total, inseridos, duplicados, ignorados, falhados); err != nil {
		return fmt.Errorf("erro registrando lote %s: %w", arquivo, err)
	}
	return nil
}

// ========================= helpers =============================

// requiredNumeric valida a string decimal canônica e devolve o valor pronto
// pra coluna NUMERIC.
func requiredNumeric(s, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("valor numérico inválido em %s: %q", field, s)
	}
	return d, nil
}

// nullableNumeric devolve nil pra campo vazio; valor inválido também vira
// nil (o parser já rejeitou lixo, aqui é só conversão).
func nullableNumeric(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return d
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
