package fiscal

import "fmt"

// Códigos de erro de parse. Todo erro levantado pelo pacote carrega um deles.
const (
	// CodeXMLMalformed: o XML não é bem formado ou não tem elemento raiz.
	CodeXMLMalformed = "XML_MALFORMED"

	// CodeMissingInfNFe: bloco infNFe não encontrado em nenhum caminho conhecido.
	CodeMissingInfNFe = "MISSING_INF_NFE"

	// CodeMissingInfCte: bloco infCte não encontrado em nenhum caminho conhecido.
	CodeMissingInfCte = "MISSING_INF_CTE"

	// CodeLayoutUnsupported: campo obrigatório ausente ou com formato inválido.
	CodeLayoutUnsupported = "LAYOUT_UNSUPPORTED"
)

// ParseError é o único tipo de erro exposto pelo parser. O Code permite ao
// chamador decidir o destino do arquivo sem inspecionar a mensagem.
type ParseError struct {
	Code    string
	Message string
	Details map[string]string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func newParseError(code, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// layoutErr é o atalho pro caso mais comum: campo obrigatório ausente/inválido.
func layoutErr(format string, args ...interface{}) *ParseError {
	return newParseError(CodeLayoutUnsupported, format, args...)
}

// wrapLayout envolve qualquer erro que não seja ParseError em LAYOUT_UNSUPPORTED,
// preservando uma taxonomia única pros chamadores.
func wrapLayout(err error) *ParseError {
	if pe, ok := err.(*ParseError); ok {
		return pe
	}
	return &ParseError{
		Code:    CodeLayoutUnsupported,
		Message: "erro inesperado durante extração",
		Cause:   err,
	}
}
