// Package transfer содержит доменные типы получателей переводов.
package transfer

import "fmt"

// AccountEnvironment окружение счета получателя перевода
type AccountEnvironment string

const (
	EnvironmentInternal      AccountEnvironment = "Internal"
	EnvironmentDomestic      AccountEnvironment = "Domestic"
	EnvironmentInternational AccountEnvironment = "International"
)

// IdentificationStrategy способ идентификации счета получателя
type IdentificationStrategy string

const (
	IdentifyByAccountID  IdentificationStrategy = "AccountID"
	IdentifyBySwiftBIC   IdentificationStrategy = "SwiftBIC"
	IdentifyByIBAN       IdentificationStrategy = "IBAN"
	IdentifyByNationalID IdentificationStrategy = "NationalID"
)

// Recipient получатель перевода, зарегистрированный на счете отправителя
type Recipient struct {
	LastName               string                 `json:"lastName"`
	FirstName              string                 `json:"firstName"`
	Identification         string                 `json:"identification"`
	AccountEnvironment     AccountEnvironment     `json:"accountEnvironment"`
	IdentificationStrategy IdentificationStrategy `json:"identificationStrategy"`
	RoutingNumber          string                 `json:"routingNumber,omitempty"`
	Currency               string                 `json:"currency"`
}

// Key возвращает ключ уникальности получателя в пределах счета.
// Внутренние и международные получатели ключуются по идентификатору,
// domestic - по паре routing number + account number.
func (r Recipient) Key() string {
	if r.AccountEnvironment == EnvironmentDomestic {
		return fmt.Sprintf("%s_%s", r.RoutingNumber, r.Identification)
	}
	return r.Identification
}

// Validate проверяет минимальную корректность получателя
func (r Recipient) Validate() error {
	if r.Identification == "" {
		return fmt.Errorf("recipient identification cannot be empty")
	}
	switch r.AccountEnvironment {
	case EnvironmentInternal, EnvironmentInternational:
	case EnvironmentDomestic:
		if r.RoutingNumber == "" {
			return fmt.Errorf("domestic recipient requires a routing number")
		}
	default:
		return fmt.Errorf("unknown recipient account environment: %s", r.AccountEnvironment)
	}
	return nil
}
