package translation

import "errors"

// Common errors returned by translators
var (
	// ErrUnsupportedLanguage is returned when a translator cannot handle the
	// requested language pair
	ErrUnsupportedLanguage = errors.New("unsupported language pair")

	// ErrTranslationFailed is returned when translation fails for any general reason
	ErrTranslationFailed = errors.New("translation failed")

	// ErrInvalidResponse is returned when a remote model returns nothing usable
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during translation")

	// ErrInvalidConfig is returned when the translator configuration is invalid
	ErrInvalidConfig = errors.New("invalid translator configuration")
)
