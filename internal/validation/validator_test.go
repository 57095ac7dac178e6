// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageRequest struct {
	Limit  int    `validate:"min=1,max=100"`
	Offset int    `validate:"min=0"`
	Result string `validate:"omitempty,oneof=1-0 0-1 1/2-1/2 *"`
}

func TestValidateStruct_Valid(t *testing.T) {
	err := ValidateStruct(&pageRequest{Limit: 20, Offset: 0, Result: "1-0"})
	assert.Nil(t, err)
}

func TestValidateStruct_SingleError(t *testing.T) {
	err := ValidateStruct(&pageRequest{Limit: 500})
	require.NotNil(t, err)
	require.Len(t, err.Errors(), 1)

	fe := err.Errors()[0]
	assert.Equal(t, "Limit", fe.Field())
	assert.Equal(t, "max", fe.Tag())
	assert.Equal(t, "Limit must be at most 100", fe.Error())

	apiErr := err.ToAPIError()
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, "Limit", apiErr.Details["field"])
}

func TestValidateStruct_MultipleErrors(t *testing.T) {
	err := ValidateStruct(&pageRequest{Limit: 0, Offset: -1, Result: "win"})
	require.NotNil(t, err)
	assert.Len(t, err.Errors(), 3)

	apiErr := err.ToAPIError()
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Contains(t, apiErr.Message, "Limit")
	assert.Contains(t, apiErr.Message, "Offset")
	assert.Contains(t, apiErr.Message, "Result must be one of")

	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	require.True(t, ok)
	assert.Len(t, fields, 3)
}

func TestValidateStruct_OneofMessage(t *testing.T) {
	err := ValidateStruct(&pageRequest{Limit: 1, Result: "draw"})
	require.NotNil(t, err)
	require.Len(t, err.Errors(), 1)
	assert.Equal(t, "Result must be one of: 1-0 0-1 1/2-1/2 *", err.Errors()[0].Error())
}

func TestGetValidatorSingleton(t *testing.T) {
	assert.Same(t, GetValidator(), GetValidator())
}
