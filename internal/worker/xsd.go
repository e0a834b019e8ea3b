package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	xsdvalidate "github.com/form3tech-oss/go-xsd-validate"
)

// Validação XSD opcional contra os schemas oficiais da SEFAZ. Desligada por
// padrão: a maioria dos ambientes confia no portal de origem e não quer o
// custo do libxml por documento.

func validateXSDIfEnabled(xmlData []byte) error {
	enabled := strings.ToLower(os.Getenv("FLUITAX_XSD_ENABLED"))
	if enabled != "true" && enabled != "1" && enabled != "yes" {
		return nil
	}

	xsdDir := os.Getenv("FLUITAX_XSD_DIR")
	xsdMain := os.Getenv("FLUITAX_XSD_MAIN")
	if xsdDir == "" {
		return fmt.Errorf("FLUITAX_XSD_ENABLED=true mas FLUITAX_XSD_DIR não foi definido")
	}
	if xsdMain == "" {
		return fmt.Errorf("FLUITAX_XSD_ENABLED=true mas FLUITAX_XSD_MAIN não foi definido (ex: procNFe_v4.00.xsd)")
	}

	xsdPath, err := resolveXSDPath(xsdDir, xsdMain)
	if err != nil {
		return err
	}
	return validateXMLWithXSD(xmlData, xsdPath)
}

func validateXMLWithXSD(xmlData []byte, xsdPath string) error {
	if _, err := os.Stat(xsdPath); err != nil {
		return fmt.Errorf("XSD não encontrado em %s: %w", xsdPath, err)
	}

	if err := xsdvalidate.Init(); err != nil {
		return fmt.Errorf("erro inicializando validador XSD: %w", err)
	}
	defer xsdvalidate.Cleanup()

	xsdHandler, err := xsdvalidate.NewXsdHandlerUrl(xsdPath, xsdvalidate.ParsErrDefault)
	if err != nil {
		return fmt.Errorf("erro carregando XSD %s: %w", xsdPath, err)
	}
	defer xsdHandler.Free()

	if err := xsdHandler.ValidateMem(xmlData, xsdvalidate.ValidErrDefault); err != nil {
		return fmt.Errorf("XML inválido segundo XSD (%s): %w", xsdPath, err)
	}

	return nil
}

func resolveXSDPath(baseDir, xsdFile string) (string, error) {
	if xsdFile == "" {
		return "", fmt.Errorf("FLUITAX_XSD_MAIN não definido")
	}
	if filepath.IsAbs(xsdFile) {
		return xsdFile, nil
	}
	return filepath.Join(baseDir, xsdFile), nil
}
