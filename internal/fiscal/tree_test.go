package fiscal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTreeMalformado(t *testing.T) {
	_, perr := parseTree("<a><b></a>")
	require.NotNil(t, perr)
	assert.Equal(t, CodeXMLMalformed, perr.Code)
}

func TestChildIgnoraPrefixoDeNamespace(t *testing.T) {
	// Emissores com prefixo explícito: o acesso casa pelo nome local.
	root := mustParse(t, `<ns:raiz xmlns:ns="http://exemplo">
  <ns:ide><ns:natOp>VENDA</ns:natOp></ns:ide>
</ns:raiz>`)

	assert.Equal(t, "VENDA", childText(root, "ide", "natOp"))
}

func TestChildTextNilSafe(t *testing.T) {
	root := mustParse(t, `<raiz><a/></raiz>`)

	// Qualquer degrau ausente devolve vazio, nunca estoura.
	assert.Equal(t, "", childText(root, "a", "b", "c"))
	assert.Equal(t, "", childText(nil, "a"))
	assert.Equal(t, "", text(nil))
	assert.Equal(t, "", attr(nil, "Id"))
}

func TestChildTextAparaEspacos(t *testing.T) {
	root := mustParse(t, `<raiz><v>  10.50
  </v></raiz>`)
	assert.Equal(t, "10.50", childText(root, "v"))
}

func TestChildTextCDATA(t *testing.T) {
	root := mustParse(t, `<raiz><xMotivo><![CDATA[Autorizado o uso]]></xMotivo></raiz>`)
	assert.Equal(t, "Autorizado o uso", childText(root, "xMotivo"))
}

func TestFindFirstOrdem(t *testing.T) {
	root := mustParse(t, `<raiz>
  <b><alvo>segundo</alvo></b>
  <a><alvo>primeiro</alvo></a>
</raiz>`)

	found := findFirst(root, [][]string{
		{"a", "alvo"},
		{"b", "alvo"},
	})
	require.NotNil(t, found)
	// Vale a ordem dos caminhos candidatos, não a ordem do documento.
	assert.Equal(t, "primeiro", text(found))
}

func TestChildRepetidoValeOPrimeiro(t *testing.T) {
	root := mustParse(t, `<raiz><v>um</v><v>dois</v></raiz>`)
	assert.Equal(t, "um", childText(root, "v"))
	assert.Len(t, children(root, "v"), 2)
}

func TestAttr(t *testing.T) {
	root := mustParse(t, `<raiz><infNFe Id="NFe123" versao="4.00"/></raiz>`)
	inf := child(root, "infNFe")
	assert.Equal(t, "NFe123", attr(inf, "Id"))
	assert.Equal(t, "", attr(inf, "inexistente"))
}
