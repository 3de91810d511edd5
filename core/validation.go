// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxQuestionLength is the default upper bound, in runes, on question text.
const MaxQuestionLength = 32 * 1024

// ValidateQuestionText validates question text at the service boundary.
// The dispatcher itself accepts any text; callers facing untrusted input
// (the HTTP facade, the CLI) apply this first.
//
// Validation rules:
//   - Text must contain at least one non-whitespace character
//   - Text must not exceed maxLen runes (maxLen <= 0 disables the check)
func ValidateQuestionText(text string, maxLen int) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuestion, ErrEmptyText)
	}
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		return fmt.Errorf("%w: %w (max %d)", ErrInvalidQuestion, ErrTextTooLong, maxLen)
	}
	return nil
}

// ParseQuestionID validates the textual form of a question ID and returns
// it in canonical lowercase hyphenated form.
func ParseQuestionID(s string) (QuestionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidQuestionID)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidQuestionID, err)
	}
	return QuestionID(parsed.String()), nil
}
