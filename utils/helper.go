package utils

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockroom_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "IN"

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err // Phone number is invalid
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil // Phone number is valid for the specified country code
}

func GenerateUniqueFilename() string {

	timestamp := time.Now().UnixNano()

	random := rand.Intn(1000)

	uniqueFilename := fmt.Sprintf("%d_%d", timestamp, random)

	return uniqueFilename
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]bool)
	result := []T{}
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	if len(defaults) > 0 {
		return defaults[0]
	}
	var zero T
	return zero
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	// Remove any whitespace and check for empty strings
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	// Convert string to decimal
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// ParseWholeQuantity parses a spreadsheet quantity cell. Values like
// "12" and "12.0" are accepted; fractional or non-numeric values are not.
func ParseWholeQuantity(value string) (int64, error) {
	dec, err := ParseDecimal(value)
	if err != nil {
		return 0, errors.New("quantity is not a number")
	}
	if !dec.IsInteger() {
		return 0, errors.New("quantity must be a whole number")
	}
	return dec.IntPart(), nil
}

// ObtainBusinessLock serializes a module's writes per business across
// instances via Redis. The caller must release the returned lock.
func ObtainBusinessLock(ctx context.Context, businessId string, lockType string, ttl time.Duration) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, "utils", "ObtainBusinessLock", "Redis lock not initialized", businessId, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, businessId)
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, "utils", "ObtainBusinessLock", "Could not obtain lock for businessID", businessId, err)
		return nil, errors.New("another " + lockType + " is already in progress for this business")
	} else if err != nil {
		config.LogError(logger, "utils", "ObtainBusinessLock", "Error obtaining lock for businessID", businessId, err)
		return nil, err
	}
	return lock, nil
}
