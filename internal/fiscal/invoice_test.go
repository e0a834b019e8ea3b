package fiscal

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replaceOnce troca um trecho do fixture, falhando se ele não existir
// (protege os testes contra fixture desatualizado).
func replaceOnce(t *testing.T, s, old, new string) string {
	t.Helper()
	require.Contains(t, s, old)
	return strings.Replace(s, old, new, 1)
}

const chaveNFe = "35240112345678000190550010000001231000001234"

// notaMinima monta uma NF-e processada válida variando série e CFOP, usada
// também nos testes da regra de nota ignorada.
func notaMinima(serie, cfop string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00">
  <NFe>
    <infNFe Id="NFe%s" versao="4.00">
      <ide>
        <nNF>123</nNF>
        <serie>%s</serie>
        <natOp>VENDA</natOp>
        <dhEmi>2024-01-15T10:30:00-03:00</dhEmi>
        <tpNF>1</tpNF>
      </ide>
      <emit><CNPJ>12345678000190</CNPJ></emit>
      <dest>
        <CNPJ>98765432000155</CNPJ>
        <xNome>CLIENTE LTDA</xNome>
        <enderDest><xMun>SAO PAULO</xMun><UF>SP</UF></enderDest>
      </dest>
      <det nItem="1">
        <prod>
          <cProd>ABC-1</cProd>
          <xProd>PRODUTO TESTE</xProd>
          <NCM>12345678</NCM>
          <CFOP>%s</CFOP>
          <uCom>UN</uCom>
          <qCom>1</qCom>
          <vUnCom>10.50</vUnCom>
          <vProd>10.50</vProd>
        </prod>
        <imposto>
          <ICMS>
            <ICMS00><CST>00</CST><vBC>10.50</vBC><vICMS>1.89</vICMS></ICMS00>
          </ICMS>
          <PIS>
            <PISAliq><vPIS>0.17</vPIS></PISAliq>
          </PIS>
          <COFINS>
            <COFINSAliq><vCOFINS>0.80</vCOFINS></COFINSAliq>
          </COFINS>
        </imposto>
      </det>
      <total><ICMSTot><vNF>10.50</vNF></ICMSTot></total>
    </infNFe>
  </NFe>
  <protNFe>
    <infProt>
      <chNFe>%s</chNFe>
      <cStat>100</cStat>
      <xMotivo>Autorizado o uso da NF-e</xMotivo>
      <nProt>135240000000001</nProt>
      <dhRecbto>2024-01-15T10:31:00-03:00</dhRecbto>
    </infProt>
  </protNFe>
</nfeProc>`, chaveNFe, serie, cfop, chaveNFe)
}

func TestExtractInvoiceMinima(t *testing.T) {
	inv, err := ParseInvoiceXML(notaMinima("1", "5102"))
	require.NoError(t, err)
	require.NotNil(t, inv)

	assert.Equal(t, chaveNFe, inv.Chave)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), inv.Emissao)
	assert.Equal(t, "1", inv.TpNF)
	assert.Equal(t, "VENDA", inv.NatOp)
	assert.Equal(t, "123", inv.Numero)
	assert.Equal(t, "1", inv.Serie)
	assert.Equal(t, "12345678000190", inv.EmitenteCNPJ)
	assert.Equal(t, "98765432000155", inv.DestCNPJ)
	assert.Equal(t, "CLIENTE LTDA", inv.DestRazao)
	assert.Equal(t, "SAO PAULO", inv.DestMunicipio)
	assert.Equal(t, "SP", inv.DestUF)
	assert.Equal(t, "10.50", inv.TotalNFe)
	assert.False(t, inv.Ignorada)
	assert.False(t, inv.Cancelada)

	require.Len(t, inv.Itens, 1)
	item := inv.Itens[0]
	assert.Equal(t, "5102", item.CFOP)
	assert.Equal(t, "12345678", item.NCM)
	assert.Equal(t, "00", item.CST)
	assert.Equal(t, "ABC-1", item.Codigo)
	assert.Equal(t, "1", item.Quantidade)
	assert.Equal(t, "10.50", item.ValorUnitario)
	assert.Equal(t, "10.50", item.ValorBruto)
	assert.Equal(t, "0", item.ValorDesconto)
	assert.Equal(t, "10.50", item.BaseICMS)
	assert.Equal(t, "1.89", item.ValorICMS)
	assert.Equal(t, "0.17", item.ValorPIS)
	assert.Equal(t, "0.80", item.ValorCOFINS)

	require.NotNil(t, inv.Protocolo)
	assert.Equal(t, "100", inv.Protocolo.CodigoStatus)
	assert.Equal(t, "135240000000001", inv.Protocolo.Numero)
	require.NotNil(t, inv.Protocolo.RecebidoEm)
}

func TestExtractInvoiceChaveDoAtributoId(t *testing.T) {
	// NFe solta, sem protocolo: a chave sai do atributo Id do infNFe.
	xml := fmt.Sprintf(`<NFe xmlns="http://www.portalfiscal.inf.br/nfe">
  <infNFe Id="NFe%s">
    <ide><natOp>VENDA</natOp><dhEmi>2024-01-15T10:30:00-03:00</dhEmi></ide>
    <emit><CNPJ>12345678000190</CNPJ></emit>
    <dest><CNPJ>98765432000155</CNPJ></dest>
    <det nItem="1">
      <prod><CFOP>5102</CFOP><qCom>2</qCom><vUnCom>5</vUnCom><vProd>10</vProd></prod>
    </det>
    <total><ICMSTot><vNF>10</vNF></ICMSTot></total>
  </infNFe>
</NFe>`, chaveNFe)

	inv, err := ParseInvoiceXML(xml)
	require.NoError(t, err)
	assert.Equal(t, chaveNFe, inv.Chave)
	assert.Nil(t, inv.Protocolo)
	assert.False(t, inv.Cancelada)
}

func TestExtractInvoiceSemInfNFe(t *testing.T) {
	_, err := ParseInvoiceXML(`<qualquerCoisa><ide/></qualquerCoisa>`)
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeMissingInfNFe, perr.Code)
}

func TestExtractInvoiceSemItens(t *testing.T) {
	xml := fmt.Sprintf(`<NFe><infNFe Id="NFe%s">
    <ide><natOp>VENDA</natOp><dhEmi>2024-01-15</dhEmi></ide>
    <emit><CNPJ>12345678000190</CNPJ></emit>
    <dest><CNPJ>98765432000155</CNPJ></dest>
    <total><ICMSTot><vNF>0</vNF></ICMSTot></total>
  </infNFe></NFe>`, chaveNFe)

	_, err := ParseInvoiceXML(xml)
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeLayoutUnsupported, perr.Code)
	assert.Contains(t, perr.Message, "sem itens")
}

func TestExtractInvoiceItemSemCFOP(t *testing.T) {
	xml := fmt.Sprintf(`<NFe><infNFe Id="NFe%s">
    <ide><natOp>VENDA</natOp><dhEmi>2024-01-15</dhEmi></ide>
    <emit><CNPJ>12345678000190</CNPJ></emit>
    <dest><CNPJ>98765432000155</CNPJ></dest>
    <det nItem="1"><prod><CFOP>5102</CFOP><qCom>1</qCom><vUnCom>1</vUnCom><vProd>1</vProd></prod></det>
    <det nItem="2"><prod><qCom>1</qCom><vUnCom>1</vUnCom><vProd>1</vProd></prod></det>
    <total><ICMSTot><vNF>2</vNF></ICMSTot></total>
  </infNFe></NFe>`, chaveNFe)

	_, err := ParseInvoiceXML(xml)
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	// O ordinal do item problemático aparece na mensagem (1-based).
	assert.Contains(t, perr.Message, "item 2")
}

func TestExtractInvoiceTpNFInvalido(t *testing.T) {
	xml := fmt.Sprintf(`<NFe><infNFe Id="NFe%s">
    <ide><natOp>VENDA</natOp><dhEmi>2024-01-15</dhEmi><tpNF>7</tpNF></ide>
    <emit><CNPJ>12345678000190</CNPJ></emit>
    <dest><CNPJ>98765432000155</CNPJ></dest>
    <det nItem="1"><prod><CFOP>5102</CFOP><qCom>1</qCom><vUnCom>1</vUnCom><vProd>1</vProd></prod></det>
    <total><ICMSTot><vNF>1</vNF></ICMSTot></total>
  </infNFe></NFe>`, chaveNFe)

	_, err := ParseInvoiceXML(xml)
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeLayoutUnsupported, perr.Code)
	assert.Contains(t, perr.Message, "tpNF")
}

func TestExtractInvoiceCancelada(t *testing.T) {
	// Protocolo com status de cancelamento homologado marca a nota.
	xml := notaMinima("1", "5102")
	inv, err := ParseInvoiceXML(xml)
	require.NoError(t, err)
	assert.False(t, inv.Cancelada)

	cancelada := replaceOnce(t, xml, "<cStat>100</cStat>", "<cStat>101</cStat>")
	inv, err = ParseInvoiceXML(cancelada)
	require.NoError(t, err)
	assert.True(t, inv.Cancelada)
}

func TestRegraNotaIgnorada(t *testing.T) {
	tests := []struct {
		name  string
		serie string
		cfop  string
		want  bool
	}{
		{name: "cfop e serie casam", serie: "891", cfop: "5949", want: true},
		{name: "so o cfop casa", serie: "1", cfop: "5949", want: false},
		{name: "so a serie casa", serie: "891", cfop: "5102", want: false},
		{name: "nenhum casa", serie: "1", cfop: "5102", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := ParseInvoiceXML(notaMinima(tt.serie, tt.cfop))
			require.NoError(t, err)
			assert.Equal(t, tt.want, inv.Ignorada)
			if tt.want {
				assert.Equal(t, "remessa interna CFOP 5949 série 891", inv.MotivoIgnorar)
			} else {
				assert.Empty(t, inv.MotivoIgnorar)
			}
		})
	}
}

func TestExtractInvoiceDecimalComVirgula(t *testing.T) {
	xml := replaceOnce(t, notaMinima("1", "5102"), "<vUnCom>10.50</vUnCom>", "<vUnCom>10,50</vUnCom>")

	inv, err := ParseInvoiceXML(xml)
	require.NoError(t, err)
	assert.Equal(t, "10.50", inv.Itens[0].ValorUnitario)
}

func TestExtractInvoiceImpostoIlegivel(t *testing.T) {
	// Imposto é opcional, mas valor presente e ilegível derruba a extração.
	xml := replaceOnce(t, notaMinima("1", "5102"), "<vICMS>1.89</vICMS>", "<vICMS>1,,89</vICMS>")

	_, err := ParseInvoiceXML(xml)
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeLayoutUnsupported, perr.Code)
}
