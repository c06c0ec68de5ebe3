package api

import (
	"context"
	"errors"
	"strings"
)

const (
	quoteFailure  = "Unable to fetch quote. Please try again later."
	unknownAuthor = "Unknown"
)

// Quote is a single attributed quotation.
type Quote struct {
	Author  string
	Content string
}

type quotePayload struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// RandomQuote fetches one random quote from a quotable compatible provider.
func (s *Service) RandomQuote(ctx context.Context) (Quote, error) {
	log := s.logger.WithField("event", "quote_fetch")

	var payload quotePayload
	if err := s.getJSON(ctx, s.endpoints.Quote+"/random", &payload); err != nil {
		apiErr := classify(err, "Network error: Unable to connect to quote service", quoteFailure)
		if errors.Is(apiErr, ErrNetwork) {
			log.Error("network error fetching quote")
		} else {
			log.WithError(err).Error("failed to fetch quote")
		}
		return Quote{}, apiErr
	}

	content := strings.TrimSpace(payload.Content)
	if content == "" {
		log.Error("invalid quote data received")
		return Quote{}, newError(ErrInvalidResponse, quoteFailure, errors.New("missing content"))
	}

	author := strings.TrimSpace(payload.Author)
	if author == "" {
		author = unknownAuthor
	}

	return Quote{Author: author, Content: content}, nil
}
