package fiscal

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chaveCTe = "35240298765432000155570010000004561000004567"

func cteMinimo() string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<cteProc xmlns="http://www.portalfiscal.inf.br/cte" versao="3.00">
  <CTe>
    <infCte Id="CTe%s" versao="3.00">
      <ide>
        <nCT>456</nCT>
        <serie>1</serie>
        <CFOP>5353</CFOP>
        <natOp>PRESTACAO DE SERVICO DE TRANSPORTE</natOp>
        <dhEmi>2024-02-01T08:00:00-03:00</dhEmi>
      </ide>
      <emit>
        <CNPJ>98765432000155</CNPJ>
        <xNome>TRANSPORTADORA XPTO</xNome>
        <enderEmit><xMun>CAMPINAS</xMun><UF>SP</UF></enderEmit>
      </emit>
      <dest>
        <CNPJ>12345678000190</CNPJ>
        <xNome>DESTINO LTDA</xNome>
        <enderDest><xMun>RIO DE JANEIRO</xMun><UF>RJ</UF></enderDest>
      </dest>
      <vPrest>
        <vTPrest>150.00</vTPrest>
        <vRec>150.00</vRec>
      </vPrest>
      <infCTeNorm>
        <infCarga>
          <infQ>
            <tpMed>PESO BRUTO</tpMed>
            <qCarga>1200.5</qCarga>
          </infQ>
        </infCarga>
      </infCTeNorm>
    </infCte>
  </CTe>
  <protCTe>
    <infProt>
      <chCTe>%s</chCTe>
      <cStat>100</cStat>
      <xMotivo>Autorizado o uso do CT-e</xMotivo>
      <nProt>135240000009001</nProt>
      <dhRecbto>2024-02-01T08:01:00-03:00</dhRecbto>
    </infProt>
  </protCTe>
</cteProc>`, chaveCTe, chaveCTe)
}

func TestExtractCTeMinimo(t *testing.T) {
	root, perr := parseTree(cteMinimo())
	require.Nil(t, perr)

	cte, err := extractCTe(root)
	require.NoError(t, err)

	assert.Equal(t, chaveCTe, cte.Chave)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), cte.Emissao)
	assert.Equal(t, "456", cte.Numero)
	assert.Equal(t, "1", cte.Serie)
	assert.Equal(t, "5353", cte.CFOP)
	assert.Equal(t, "PRESTACAO DE SERVICO DE TRANSPORTE", cte.NatOp)
	assert.Equal(t, "98765432000155", cte.EmitenteCNPJ)
	assert.Equal(t, "TRANSPORTADORA XPTO", cte.EmitenteRazao)
	assert.Equal(t, "CAMPINAS", cte.EmitenteMunicipio)
	assert.Equal(t, "SP", cte.EmitenteUF)
	assert.Equal(t, "12345678000190", cte.DestCNPJ)
	assert.Equal(t, "RJ", cte.DestUF)
	assert.Equal(t, "150.00", cte.ValorPrestacao)
	assert.Equal(t, "150.00", cte.ValorReceber)
	assert.Equal(t, "1200.5", cte.PesoCarga)
	assert.Equal(t, "PESO BRUTO", cte.UnidadePeso)
	assert.False(t, cte.Cancelada)

	require.NotNil(t, cte.Protocolo)
	assert.Equal(t, "100", cte.Protocolo.CodigoStatus)
}

func TestExtractCTeSemWrapperDeCarga(t *testing.T) {
	// Alguns emissores pulam o infCTeNorm e pendem infCarga direto no infCte.
	xml := fmt.Sprintf(`<CTe><infCte Id="CTe%s">
    <ide><natOp>TRANSPORTE</natOp><dhEmi>2024-02-01</dhEmi></ide>
    <emit><CNPJ>98765432000155</CNPJ></emit>
    <dest><CNPJ>12345678000190</CNPJ></dest>
    <vPrest><vTPrest>80</vTPrest></vPrest>
    <infCarga><infQ><tpMed>KG</tpMed><qCarga>35,2</qCarga></infQ></infCarga>
  </infCte></CTe>`, chaveCTe)

	root, perr := parseTree(xml)
	require.Nil(t, perr)

	cte, err := extractCTe(root)
	require.NoError(t, err)
	assert.Equal(t, "35.2", cte.PesoCarga)
	assert.Equal(t, "KG", cte.UnidadePeso)
	assert.Equal(t, "", cte.ValorReceber)
	assert.Nil(t, cte.Protocolo)
}

func TestExtractCTeSemInfCte(t *testing.T) {
	root, perr := parseTree(`<cteProc><outraCoisa/></cteProc>`)
	require.Nil(t, perr)

	_, err := extractCTe(root)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CodeMissingInfCte, pe.Code)
}

func TestExtractCTeCancelado(t *testing.T) {
	xml := replaceOnce(t, cteMinimo(), "<cStat>100</cStat>", "<cStat>101</cStat>")

	root, perr := parseTree(xml)
	require.Nil(t, perr)

	cte, err := extractCTe(root)
	require.NoError(t, err)
	assert.True(t, cte.Cancelada)
}

func TestExtractCTeSemValorPrestacao(t *testing.T) {
	xml := fmt.Sprintf(`<CTe><infCte Id="CTe%s">
    <ide><natOp>TRANSPORTE</natOp><dhEmi>2024-02-01</dhEmi></ide>
    <emit><CNPJ>98765432000155</CNPJ></emit>
    <dest><CNPJ>12345678000190</CNPJ></dest>
  </infCte></CTe>`, chaveCTe)

	root, perr := parseTree(xml)
	require.Nil(t, perr)

	_, err := extractCTe(root)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CodeLayoutUnsupported, pe.Code)
	assert.Contains(t, pe.Message, "valor_prestacao")
}
