package csvimport

import (
	"net/mail"
	"regexp"
	"unicode/utf8"
)

// FieldRule defines validation rules for a column
type FieldRule struct {
	Column      string
	Required    bool
	MaxLength   int
	Email       bool
	Pattern     *regexp.Regexp
	PatternDesc string
	CustomFunc  func(value string) error
}

// FieldRuleBuilder helps build field rules fluently
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field creates a new field rule builder
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{Column: column}}
}

// Required marks the field as required
func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

// MaxLength limits the value to n characters
func (b *FieldRuleBuilder) MaxLength(n int) *FieldRuleBuilder {
	b.rule.MaxLength = n
	return b
}

// Email requires the value to parse as an e-mail address
func (b *FieldRuleBuilder) Email() *FieldRuleBuilder {
	b.rule.Email = true
	return b
}

// Pattern sets a regex pattern for validation
func (b *FieldRuleBuilder) Pattern(pattern, description string) *FieldRuleBuilder {
	b.rule.Pattern = regexp.MustCompile(pattern)
	b.rule.PatternDesc = description
	return b
}

// Custom sets a custom validation function
func (b *FieldRuleBuilder) Custom(fn func(value string) error) *FieldRuleBuilder {
	b.rule.CustomFunc = fn
	return b
}

// Build returns the built field rule
func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// FieldValidator checks rows against a fixed rule set
type FieldValidator struct {
	rules  []FieldRule
	errors *ErrorCollection
}

// NewFieldValidator creates a new field validator. Rules are applied in
// the given order so errors for a row come out deterministically.
func NewFieldValidator(rules []FieldRule, maxErrors int) *FieldValidator {
	return &FieldValidator{
		rules:  rules,
		errors: NewErrorCollection(maxErrors),
	}
}

// ValidateRow validates all fields in a row
func (v *FieldValidator) ValidateRow(row *Row) bool {
	valid := true

	for _, rule := range v.rules {
		value := row.Get(rule.Column)

		if value == "" {
			if rule.Required {
				v.errors.AddRequiredError(row.LineNumber, rule.Column)
				valid = false
			}
			continue
		}

		if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
			v.errors.AddLengthError(row.LineNumber, rule.Column, rule.MaxLength)
			valid = false
		}

		if rule.Email {
			if addr, err := mail.ParseAddress(value); err != nil || addr.Address != value {
				v.errors.AddFormatError(row.LineNumber, rule.Column, "email", value)
				valid = false
			}
		}

		if rule.Pattern != nil && !rule.Pattern.MatchString(value) {
			v.errors.AddPatternError(row.LineNumber, rule.Column, rule.PatternDesc, value)
			valid = false
		}

		if rule.CustomFunc != nil {
			if err := rule.CustomFunc(value); err != nil {
				e := NewRowError(row.LineNumber, rule.Column, ErrCodeImportRejected, err.Error())
				e.Value = value
				v.errors.Add(e)
				valid = false
			}
		}
	}

	return valid
}

// Errors returns the error collection
func (v *FieldValidator) Errors() *ErrorCollection {
	return v.errors
}
