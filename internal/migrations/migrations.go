package migrations

import (
	"database/sql"
	"fmt"
)

// Run executa todas as migrations necessárias no banco da aplicação.
func Run(db *sql.DB) error {
	stmts := []string{
		// nota fiscal (NF-e)
		`
CREATE TABLE IF NOT EXISTS nota_fiscal (
    id BIGSERIAL PRIMARY KEY,
    chave CHAR(44) NOT NULL,

    emissao DATE NOT NULL,
    entrada_saida DATE,
    tp_nf CHAR(1),
    natureza_operacao VARCHAR(255) NOT NULL,
    numero VARCHAR(20),
    serie VARCHAR(10),

    emitente_cnpj VARCHAR(14) NOT NULL,
    dest_cnpj VARCHAR(14) NOT NULL,
    dest_razao VARCHAR(255),
    dest_municipio VARCHAR(120),
    dest_uf CHAR(2),

    valor_total NUMERIC(15,2) NOT NULL,

    protocolo_status VARCHAR(10),
    protocolo_motivo VARCHAR(255),
    protocolo_numero VARCHAR(50),
    protocolo_recebido_em TIMESTAMP(3),

    cancelada BOOLEAN NOT NULL DEFAULT FALSE,
    ignorada BOOLEAN NOT NULL DEFAULT FALSE,
    motivo_ignorar VARCHAR(255),

    xml_raw TEXT,

    created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
    updated_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),

    CONSTRAINT uk_nota_fiscal_chave UNIQUE (chave)
);
`,
		`CREATE INDEX IF NOT EXISTS idx_nota_fiscal_emissao ON nota_fiscal (emissao);`,
		`CREATE INDEX IF NOT EXISTS idx_nota_fiscal_emitente ON nota_fiscal (emitente_cnpj);`,
		`CREATE INDEX IF NOT EXISTS idx_nota_fiscal_dest ON nota_fiscal (dest_cnpj);`,
		`CREATE INDEX IF NOT EXISTS idx_nota_fiscal_serie_numero ON nota_fiscal (serie, numero);`,

		// itens da nota
		`
CREATE TABLE IF NOT EXISTS nota_fiscal_item (
    id BIGSERIAL PRIMARY KEY,
    nota_fiscal_id BIGINT NOT NULL,
    n_item INTEGER NOT NULL,

    cfop CHAR(4) NOT NULL,
    cfop_descricao VARCHAR(255),
    ncm VARCHAR(8),
    cst VARCHAR(3),
    codigo VARCHAR(100),
    descricao VARCHAR(255),
    unidade VARCHAR(10),

    quantidade NUMERIC(15,4) NOT NULL,
    valor_unit NUMERIC(21,10) NOT NULL,
    valor_bruto NUMERIC(15,2) NOT NULL,
    valor_desconto NUMERIC(15,2) NOT NULL DEFAULT 0,

    base_icms NUMERIC(15,2),
    valor_icms NUMERIC(15,2),
    deducao_icms NUMERIC(15,2),
    base_icms_st NUMERIC(15,2),
    valor_icms_st NUMERIC(15,2),
    valor_ipi NUMERIC(15,2),
    valor_pis NUMERIC(15,2),
    valor_cofins NUMERIC(15,2),

    created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
    updated_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),

    CONSTRAINT uk_nota_fiscal_item UNIQUE (nota_fiscal_id, n_item),
    CONSTRAINT fk_nota_fiscal_item_nota
        FOREIGN KEY (nota_fiscal_id) REFERENCES nota_fiscal(id)
        ON DELETE CASCADE
);
`,
		`CREATE INDEX IF NOT EXISTS idx_nota_fiscal_item_nota ON nota_fiscal_item (nota_fiscal_id);`,
		`CREATE INDEX IF NOT EXISTS idx_nota_fiscal_item_cfop ON nota_fiscal_item (cfop);`,
		`CREATE INDEX IF NOT EXISTS idx_nota_fiscal_item_ncm ON nota_fiscal_item (ncm);`,

		// conhecimento de transporte (CT-e)
		`
CREATE TABLE IF NOT EXISTS cte (
    id BIGSERIAL PRIMARY KEY,
    chave CHAR(44) NOT NULL,

    emissao DATE NOT NULL,
    numero VARCHAR(20),
    serie VARCHAR(10),
    cfop CHAR(4),
    natureza_operacao VARCHAR(255) NOT NULL,

    emitente_cnpj VARCHAR(14) NOT NULL,
    emitente_razao VARCHAR(255),
    emitente_municipio VARCHAR(120),
    emitente_uf CHAR(2),

    dest_cnpj VARCHAR(14) NOT NULL,
    dest_razao VARCHAR(255),
    dest_municipio VARCHAR(120),
    dest_uf CHAR(2),

    valor_prestacao NUMERIC(15,2) NOT NULL,
    valor_receber NUMERIC(15,2),
    peso_carga NUMERIC(15,4),
    unidade_peso VARCHAR(10),

    protocolo_status VARCHAR(10),
    protocolo_motivo VARCHAR(255),
    protocolo_numero VARCHAR(50),
    protocolo_recebido_em TIMESTAMP(3),

    cancelada BOOLEAN NOT NULL DEFAULT FALSE,

    xml_raw TEXT,

    created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
    updated_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),

    CONSTRAINT uk_cte_chave UNIQUE (chave)
);
`,
		`CREATE INDEX IF NOT EXISTS idx_cte_emissao ON cte (emissao);`,
		`CREATE INDEX IF NOT EXISTS idx_cte_emitente ON cte (emitente_cnpj);`,

		// eventos de cancelamento/correção
		`
CREATE TABLE IF NOT EXISTS evento_cancelamento (
    id BIGSERIAL PRIMARY KEY,
    chave CHAR(44) NOT NULL,

    tipo_evento VARCHAR(10),
    sequencia VARCHAR(5),
    codigo_status VARCHAR(10),
    motivo VARCHAR(255),
    numero_protocolo VARCHAR(50),
    data_evento TIMESTAMP(3),
    recebido_em TIMESTAMP(3),
    justificativa VARCHAR(255),
    aprovado BOOLEAN NOT NULL DEFAULT FALSE,

    created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),

    CONSTRAINT uk_evento_cancelamento UNIQUE (chave, tipo_evento, sequencia)
);
`,
		`CREATE INDEX IF NOT EXISTS idx_evento_cancelamento_chave ON evento_cancelamento (chave);`,

		// auditoria de lotes de upload (contadores por arquivo)
		`
CREATE TABLE IF NOT EXISTS lote_upload (
    id BIGSERIAL PRIMARY KEY,
    arquivo VARCHAR(255) NOT NULL,
    total INTEGER NOT NULL DEFAULT 0,
    inseridos INTEGER NOT NULL DEFAULT 0,
    duplicados INTEGER NOT NULL DEFAULT 0,
    ignorados INTEGER NOT NULL DEFAULT 0,
    falhados INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3)
);
`,
	}

	for i, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("erro executando migration %d: %w", i+1, err)
		}
	}

	return nil
}
