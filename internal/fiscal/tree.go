package fiscal

import (
	"strings"

	"github.com/beevik/etree"
)

// ============================================================================
// Ingestão da árvore + acessores nil-safe
//
// XMLs fiscais chegam com deriva real de layout: prefixos de namespace
// presentes ou removidos, texto em CDATA, blocos aninhados um nível a mais em
// alguns emissores. Todos os extratores enxergam a árvore só através destes
// helpers, que casam pelo nome local da tag e nunca estouram em nó ausente.
// ============================================================================

// parseTree converte o XML bruto numa árvore etree. Qualquer erro sintático,
// ou documento sem elemento raiz, vira XML_MALFORMED.
func parseTree(raw string) (*etree.Element, *ParseError) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return nil, &ParseError{
			Code:    CodeXMLMalformed,
			Message: "XML malformado",
			Cause:   err,
		}
	}
	root := doc.Root()
	if root == nil {
		return nil, newParseError(CodeXMLMalformed, "documento sem elemento raiz")
	}
	return root, nil
}

// child devolve o primeiro filho com a tag local dada, ignorando prefixo de
// namespace. Quando o emissor repete o elemento, vale o primeiro.
func child(el *etree.Element, name string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == name {
			return c
		}
	}
	return nil
}

// children devolve todos os filhos com a tag local dada, na ordem do documento.
func children(el *etree.Element, name string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == name {
			out = append(out, c)
		}
	}
	return out
}

// path caminha por uma sequência de tags a partir de el. Nil em qualquer
// degrau ausente.
func path(el *etree.Element, names ...string) *etree.Element {
	cur := el
	for _, n := range names {
		cur = child(cur, n)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// findFirst tenta uma lista ordenada de caminhos candidatos e devolve o
// primeiro que existir. É assim que o mesmo bloco lógico é localizado em
// layouts com envelopamento diferente.
func findFirst(el *etree.Element, paths [][]string) *etree.Element {
	for _, p := range paths {
		if found := path(el, p...); found != nil {
			return found
		}
	}
	return nil
}

// text devolve o texto do elemento, com espaços aparados. etree já resolve
// CDATA e nós de texto pro mesmo lugar, então aqui só sobra o trim.
func text(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

// childText é o acessor escalar usado em praticamente todo campo: caminha
// pelo path e devolve o texto, ou "" se qualquer nó faltar. Total e
// idempotente por construção.
func childText(el *etree.Element, names ...string) string {
	return text(path(el, names...))
}

// attr devolve o valor do atributo, ignorando prefixo de namespace.
func attr(el *etree.Element, name string) string {
	if el == nil {
		return ""
	}
	for _, a := range el.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// tagContains diz se a tag local do elemento contém o marcador, sem
// diferenciar maiúsculas.
func tagContains(el *etree.Element, marker string) bool {
	if el == nil {
		return false
	}
	return strings.Contains(strings.ToLower(el.Tag), strings.ToLower(marker))
}
