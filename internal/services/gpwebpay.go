package services

import (
	"crypto/rsa"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"excursion-booking/internal/models"
	"excursion-booking/internal/utils"
)

const (
	gpOperationCreateOrder = "CREATE_ORDER"
	gpDepositFlag          = "1"
	gpPayMethodCard        = "CRD"
	gpDefaultCurrency      = "978"
)

// Gateway result codes
const (
	PRCodeOK                   = "0"
	PRCodeDuplicateOrderNumber = "14"
	PRCodeThreeDSDeclined      = "28"
	PRCodeDeclined             = "30"
	PRCodeSessionExpired       = "35"
	PRCodeCancelled            = "50"
	PRCodeTechnicalProblem     = "1000"
)

// gpRequestSignKeys is the order in which request fields are signed.
var gpRequestSignKeys = []string{
	"MERCHANTNUMBER",
	"OPERATION",
	"ORDERNUMBER",
	"AMOUNT",
	"CURRENCY",
	"DEPOSITFLAG",
	"MERORDERNUM",
	"URL",
	"DESCRIPTION",
	"MD",
	"PAYMETHOD",
	"PAYMETHODS",
	"EMAIL",
	"REFERENCENUMBER",
}

// gpResponseFieldOrder is the order in which callback fields are signed.
var gpResponseFieldOrder = []string{
	"OPERATION",
	"ORDERNUMBER",
	"MERORDERNUM",
	"MD",
	"PRCODE",
	"SRCODE",
	"RESULTTEXT",
	"ADDINFO",
	"TOKEN",
	"EXPIRY",
	"ACSRES",
	"ACCODE",
	"PANPATTERN",
	"DAYTOCAPTURE",
	"TOKENREGSTATUS",
	"ACRC",
	"RRN",
	"PAR",
	"TRACEID",
}

// GPWebPayConfig represents GP webpay gateway configuration
type GPWebPayConfig struct {
	MerchantNumber string
	RequestURL     string // gateway endpoint the customer is redirected to
	ResponseURL    string // our callback endpoint
	Currency       string // ISO 4217 numeric, defaults to EUR
	PrivateKey     []byte // PEM, possibly passphrase protected
	Passphrase     string
	PublicKey      []byte // gateway PEM public key or certificate
}

// GatewayPayment is one payment attempt sent to the gateway
type GatewayPayment struct {
	TransactionID int64 // sent as ORDERNUMBER
	OrderID       int64 // sent as MERORDERNUM
	AmountMinor   int64
	Email         string
}

// GPWebPayService builds signed payment redirects and verifies gateway callbacks
type GPWebPayService struct {
	config     GPWebPayConfig
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	logger     zerolog.Logger
}

// NewGPWebPayService parses the key material once and creates the service
func NewGPWebPayService(config GPWebPayConfig, logger zerolog.Logger) (*GPWebPayService, error) {
	if config.MerchantNumber == "" || config.RequestURL == "" {
		return nil, fmt.Errorf("%w: GP webpay merchant number and request URL are required", models.ErrInternalConfiguration)
	}
	if config.Currency == "" {
		config.Currency = gpDefaultCurrency
	}

	privateKey, err := utils.ParsePrivateKey(config.PrivateKey, config.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load GP webpay private key: %v", models.ErrInternalConfiguration, err)
	}
	publicKey, err := utils.ParsePublicKey(config.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load GP webpay public key: %v", models.ErrInternalConfiguration, err)
	}

	return &GPWebPayService{
		config:     config,
		privateKey: privateKey,
		publicKey:  publicKey,
		logger:     logger.With().Str("component", "gpwebpay").Logger(),
	}, nil
}

// BuildPaymentRequest returns the signed CREATE_ORDER fields for a payment attempt
func (s *GPWebPayService) BuildPaymentRequest(data GatewayPayment) (map[string]string, error) {
	params := map[string]string{
		"MERCHANTNUMBER": s.config.MerchantNumber,
		"OPERATION":      gpOperationCreateOrder,
		"ORDERNUMBER":    strconv.FormatInt(data.TransactionID, 10),
		"AMOUNT":         strconv.FormatInt(data.AmountMinor, 10),
		"CURRENCY":       s.config.Currency,
		"DEPOSITFLAG":    gpDepositFlag,
		"MERORDERNUM":    strconv.FormatInt(data.OrderID, 10),
		"URL":            s.config.ResponseURL,
		"EMAIL":          data.Email,
		"PAYMETHOD":      gpPayMethodCard,
	}

	digest, err := utils.SignSHA1(utils.BuildBaseString(params, gpRequestSignKeys), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payment request: %w", err)
	}
	params["DIGEST"] = digest

	return params, nil
}

// PaymentURL returns the gateway URL the customer is redirected to
func (s *GPWebPayService) PaymentURL(data GatewayPayment) (string, error) {
	params, err := s.BuildPaymentRequest(data)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	for key, value := range params {
		if value != "" {
			query.Set(key, value)
		}
	}

	return s.config.RequestURL + "?" + query.Encode(), nil
}

// responseBaseString joins the present callback fields in signing order.
func responseBaseString(params map[string]string) string {
	values := make([]string, 0, len(gpResponseFieldOrder))
	for _, key := range gpResponseFieldOrder {
		if value, ok := params[key]; ok {
			values = append(values, value)
		}
	}
	return strings.Join(values, "|")
}

// VerifyResponse checks DIGEST and DIGEST1 of a gateway callback
func (s *GPWebPayService) VerifyResponse(params map[string]string) error {
	digest, digest1 := params["DIGEST"], params["DIGEST1"]
	if digest == "" || digest1 == "" {
		return models.ErrMissingDigest
	}

	base := responseBaseString(params)
	if err := utils.VerifySHA1(base, digest, s.publicKey); err != nil {
		return fmt.Errorf("%w: DIGEST: %v", models.ErrInvalidDigest, err)
	}
	if err := utils.VerifySHA1(base+"|"+s.config.MerchantNumber, digest1, s.publicKey); err != nil {
		return fmt.Errorf("%w: DIGEST1: %v", models.ErrInvalidDigest, err)
	}

	return nil
}

// ProcessPaymentResult verifies a callback and interprets its result codes
func (s *GPWebPayService) ProcessPaymentResult(params map[string]string) (*models.GatewayResult, error) {
	if err := s.VerifyResponse(params); err != nil {
		s.logger.Warn().Err(err).Str("order_number", params["ORDERNUMBER"]).Msg("Rejected gateway callback")
		return nil, err
	}

	transactionID, err := ParseOrderNumber(params)
	if err != nil {
		return nil, err
	}
	orderID, _ := strconv.ParseInt(params["MERORDERNUM"], 10, 64)

	result := &models.GatewayResult{
		Success:       params["PRCODE"] == PRCodeOK && params["SRCODE"] == PRCodeOK,
		TransactionID: transactionID,
		OrderID:       orderID,
		PRCode:        params["PRCODE"],
		SRCode:        params["SRCODE"],
		ResultText:    params["RESULTTEXT"],
	}

	if !result.Success {
		s.logger.Info().
			Int64("transaction_id", transactionID).
			Str("prcode", result.PRCode).
			Str("srcode", result.SRCode).
			Str("result_text", result.ResultText).
			Msg("Gateway reported unsuccessful payment")
	}

	return result, nil
}

// ParseOrderNumber extracts the payment transaction id from callback fields
func ParseOrderNumber(params map[string]string) (int64, error) {
	value := strings.TrimSpace(params["ORDERNUMBER"])
	transactionID, err := strconv.ParseInt(value, 10, 64)
	if err != nil || transactionID <= 0 {
		return 0, &models.Error{Kind: models.ErrInvalidInput, Message: fmt.Sprintf("invalid ORDERNUMBER %q", value)}
	}
	return transactionID, nil
}

// ResultMessage maps gateway result codes to a customer facing message
func ResultMessage(prcode, srcode string) string {
	switch {
	case prcode == "":
		return "Payment is awaiting confirmation"
	case prcode == PRCodeOK && srcode == PRCodeOK:
		return "Payment completed successfully"
	case prcode == PRCodeDuplicateOrderNumber:
		return "Duplicate order number, please retry the payment"
	case prcode == PRCodeCancelled:
		return "Payment was cancelled by the cardholder"
	case prcode == PRCodeThreeDSDeclined:
		return "3-D Secure authentication was declined"
	case prcode == PRCodeDeclined:
		return "Payment was declined by the card issuer"
	case prcode == PRCodeSessionExpired:
		return "Payment session expired"
	case prcode == PRCodeTechnicalProblem:
		return "Technical problem at the payment gateway"
	default:
		return "Payment failed"
	}
}
