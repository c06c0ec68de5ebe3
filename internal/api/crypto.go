package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"tg_assistant_bot/internal/logging"
)

// QuoteCurrency is the only vs-currency requested from the price provider.
const QuoteCurrency = "usd"

// CryptoPrices maps a provider coin id to its price per currency code.
type CryptoPrices map[string]map[string]float64

// Price returns the amount for symbol in currency, reporting whether both keys
// were present.
func (p CryptoPrices) Price(symbol, currency string) (float64, bool) {
	byCurrency, ok := p[symbol]
	if !ok {
		return 0, false
	}
	amount, ok := byCurrency[currency]
	return amount, ok
}

// CryptoPrice fetches the USD price for a provider coin id such as "bitcoin".
// Ids are passed through untouched; tickers like "BTC" are not translated.
func (s *Service) CryptoPrice(ctx context.Context, symbol string) (CryptoPrices, error) {
	failure := fmt.Sprintf("Unable to fetch price for %s. Please check the symbol and try again.", symbol)
	log := s.logger.WithFields(logging.Fields{"event": "crypto_fetch", "symbol": symbol})

	query := url.Values{"ids": {symbol}, "vs_currencies": {QuoteCurrency}}
	endpoint := s.endpoints.Crypto + "/simple/price?" + query.Encode()

	var prices CryptoPrices
	if err := s.getJSON(ctx, endpoint, &prices); err != nil {
		apiErr := classify(err, "Network error: Unable to connect to cryptocurrency service", failure)
		if errors.Is(apiErr, ErrNetwork) {
			log.Error("network error fetching crypto price")
		} else {
			log.WithError(err).Error("failed to fetch crypto price")
		}
		return nil, apiErr
	}

	if len(prices) == 0 {
		log.Info("cryptocurrency not found")
		return nil, newError(ErrNotFound, fmt.Sprintf("Sorry, I couldn't find price data for %s.", symbol), nil)
	}

	return prices, nil
}
