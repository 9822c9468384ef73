package edi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAllocations(t *testing.T) {
	norm := NewNormalizer(nil)

	t.Run("walks store and quantity pairs", func(t *testing.T) {
		dest := &DestinationInfo{SDQ: map[string]any{
			"SDQ01": "EA",
			"SDQ02": "92",
			"SDQ03": "0001", "SDQ04": 10.0,
			"SDQ05": "0002", "SDQ06": 5.0,
		}}
		got := StoreAllocations(dest, norm)
		require.Len(t, got, 2)
		assert.Equal(t, StoreAllocation{StoreNumber: "0001", Qty: 10}, got[0])
		assert.Equal(t, StoreAllocation{StoreNumber: "0002", Qty: 5}, got[1])
	})

	t.Run("stops at first gap", func(t *testing.T) {
		dest := &DestinationInfo{SDQ: map[string]any{
			"SDQ03": "0001", "SDQ04": 10.0,
			// SDQ05/06 missing; SDQ07 onwards must not be reached
			"SDQ07": "0003", "SDQ08": 7.0,
		}}
		got := StoreAllocations(dest, norm)
		require.Len(t, got, 1)
		assert.Equal(t, "0001", got[0].StoreNumber)
	})

	t.Run("store without quantity ends the walk", func(t *testing.T) {
		dest := &DestinationInfo{SDQ: map[string]any{
			"SDQ03": "0001", "SDQ04": 10.0,
			"SDQ05": "0002",
		}}
		assert.Len(t, StoreAllocations(dest, norm), 1)
	})

	t.Run("drops empty stores and non-positive quantities", func(t *testing.T) {
		dest := &DestinationInfo{SDQ: map[string]any{
			"SDQ03": "", "SDQ04": 10.0,
			"SDQ05": "0002", "SDQ06": 0.0,
			"SDQ07": "0003", "SDQ08": 3.0,
		}}
		got := StoreAllocations(dest, norm)
		require.Len(t, got, 1)
		assert.Equal(t, "0003", got[0].StoreNumber)
	})

	t.Run("numeric store identifiers render as text", func(t *testing.T) {
		dest := &DestinationInfo{SDQ: map[string]any{
			"SDQ03": 451.0, "SDQ04": 2.0,
		}}
		got := StoreAllocations(dest, norm)
		require.Len(t, got, 1)
		assert.Equal(t, "451", got[0].StoreNumber)
	})

	t.Run("nil destination yields nothing", func(t *testing.T) {
		assert.Nil(t, StoreAllocations(nil, norm))
		assert.Nil(t, StoreAllocations(&DestinationInfo{}, norm))
	})
}
