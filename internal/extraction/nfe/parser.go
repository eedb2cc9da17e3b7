package nfe

import (
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"intake/internal/domain"
)

const (
	confidenceParsed       = 0.95
	confidenceUnrecognized = 0.3
	maxDescriptionRunes    = 500
	defaultDescription     = "Electronic Invoice"
)

// rootPaths are the accepted locations of infNFe, tried in order. The wildcard
// variants cover exports that wrap the document in one extra envelope element.
var rootPaths = []string{
	"./nfeProc/NFe/infNFe",
	"./NFe/infNFe",
	"./infNFe",
	"./*/nfeProc/NFe/infNFe",
	"./*/NFe/infNFe",
}

// paymentCodes maps tPag codes to the payment vocabulary.
var paymentCodes = map[string]domain.PaymentMethod{
	"01": domain.PaymentCash,
	"02": domain.PaymentCheck,
	"03": domain.PaymentCard,
	"04": domain.PaymentCard,
	"15": domain.PaymentBankSlip,
	"17": domain.PaymentPix,
	"18": domain.PaymentPix,
	"20": domain.PaymentPix,
}

// Parser reads Brazilian NF-e XML documents. It implements port.InvoiceXMLParser.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates an NF-e parser.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse never returns nil. Malformed XML yields confidence 0 and an unknown
// document layout yields confidence 0.3; both carry a short description.
func (p *Parser) Parse(data []byte) *domain.ExtractionResult {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(data); err != nil {
		p.logger.Warn("nfe.Parse: malformed XML", zap.Error(err), zap.Int("bytes", len(data)))
		return &domain.ExtractionResult{Description: "parse error", Confidence: 0}
	}

	inf := findRoot(doc)
	if inf == nil {
		p.logger.Info("nfe.Parse: no infNFe element found")
		return &domain.ExtractionResult{Description: "unrecognized document", Confidence: confidenceUnrecognized}
	}

	result := &domain.ExtractionResult{
		SupplierName:  firstText(inf, "emit/xFant", "emit/xNome"),
		TaxID:         firstText(inf, "emit/CNPJ", "emit/CPF"),
		InvoiceNumber: firstText(inf, "ide/nNF"),
		Amount:        amount(inf),
		Description:   description(inf),
		PaymentMethod: paymentMethod(inf),
		Confidence:    confidenceParsed,
	}
	if raw := firstText(inf, "ide/dhEmi", "ide/dEmi"); raw != nil {
		result.DocumentDate = domain.NormalizeDate(*raw)
	}
	return result
}

func findRoot(doc *etree.Document) *etree.Element {
	for _, path := range rootPaths {
		if el := doc.FindElement(path); el != nil {
			return el
		}
	}
	return nil
}

// firstText returns the trimmed text of the first path that has a non-blank value.
func firstText(el *etree.Element, paths ...string) *string {
	for _, path := range paths {
		if found := el.FindElement(path); found != nil {
			if s := domain.StringPtr(found.Text()); s != nil {
				return s
			}
		}
	}
	return nil
}

func amount(inf *etree.Element) *decimal.Decimal {
	for _, path := range []string{"total/ICMSTot/vNF", "total/ICMSTot/vProd"} {
		raw := firstText(inf, path)
		if raw == nil {
			continue
		}
		d, err := decimal.NewFromString(*raw)
		if err != nil {
			continue
		}
		return &d
	}
	return nil
}

func description(inf *etree.Element) string {
	var names []string
	for _, el := range inf.FindElements("det/prod/xProd") {
		if name := strings.TrimSpace(el.Text()); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return defaultDescription
	}
	desc := strings.Join(names, ", ")
	if r := []rune(desc); len(r) > maxDescriptionRunes {
		desc = string(r[:maxDescriptionRunes])
	}
	return desc
}

func paymentMethod(inf *etree.Element) *domain.PaymentMethod {
	code := firstText(inf, "pag/detPag/tPag", "pag/tPag")
	if code == nil {
		return nil
	}
	pm, ok := paymentCodes[*code]
	if !ok {
		return nil
	}
	return &pm
}

// charsetReader accepts the legacy single-byte encodings some issuers still declare.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", label)
	}
}
