package eventipc

import (
	"fmt"

	"github.com/randalmurphal/eventipc/pkg/eventipc/codec"
	"github.com/randalmurphal/eventipc/pkg/eventipc/config"
	"github.com/randalmurphal/eventipc/pkg/eventipc/crypto"
	"github.com/randalmurphal/eventipc/pkg/eventipc/journal"
)

// OptionsFromSettings translates loaded settings into agent options. A
// journal opened here is closed by the agent on Shutdown.
func OptionsFromSettings(s config.Settings) ([]Option, error) {
	strategy, err := crypto.New(s.Cipher, s.Key)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}
	serializer, err := codec.SerializerByName(s.Serializer)
	if err != nil {
		return nil, fmt.Errorf("serializer: %w", err)
	}

	opts := []Option{
		WithEncryption(strategy),
		WithSerializer(serializer),
		WithRequestTimeout(s.RequestTimeout),
		WithMetrics(s.Metrics),
		WithTracing(s.Tracing),
	}

	if s.JournalPath != "" {
		store, err := journal.Open(s.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		opts = append(opts, withOwnedJournal(store))
	}
	return opts, nil
}

// ConnectOptionsFromSettings translates the retry settings.
func ConnectOptionsFromSettings(s config.Settings) []ConnectOption {
	return []ConnectOption{
		WithMaxRetries(s.MaxRetries),
		WithRetryDelay(s.RetryDelay),
	}
}
