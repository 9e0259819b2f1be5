package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Category is the closed set of product categories.
type Category string

const (
	CategoryVegetables Category = "Vegetables"
	CategoryFruits     Category = "Fruits"
	CategoryDairy      Category = "Dairy"
	CategoryHoney      Category = "Honey"
	CategoryMeat       Category = "Meat"
	CategoryBakery     Category = "Bakery"
	CategoryCrafts     Category = "Crafts"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryVegetables,
	CategoryFruits,
	CategoryDairy,
	CategoryHoney,
	CategoryMeat,
	CategoryBakery,
	CategoryCrafts,
}

// Unit is the label a product price refers to.
type Unit string

const (
	UnitKilogram Unit = "kg"
	UnitGram     Unit = "g"
	UnitLitre    Unit = "l"
	UnitPiece    Unit = "pc"
	UnitJar      Unit = "jar"
	UnitBunch    Unit = "bunch"
	UnitDozen    Unit = "dozen"
	UnitBox      Unit = "box"
)

// Units lists the accepted unit labels.
var Units = []Unit{UnitKilogram, UnitGram, UnitLitre, UnitPiece, UnitJar, UnitBunch, UnitDozen, UnitBox}

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownUnit     = errors.New("unknown unit")
	ErrNegativePrice   = errors.New("price must not be negative")
	ErrScoreOutOfRange = errors.New("score must be between 1 and 5")
)

// ParseCategory matches raw against the known categories, ignoring case.
func ParseCategory(raw string) (Category, error) {
	raw = strings.TrimSpace(raw)
	for _, c := range Categories {
		if strings.EqualFold(raw, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
}

// ParseUnit normalizes raw to one of Units.
func ParseUnit(raw string) (Unit, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, u := range Units {
		if raw == string(u) {
			return u, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, raw)
}

func validatePrice(p float64) error {
	if p < 0 {
		return ErrNegativePrice
	}
	return nil
}

func validateScore(score int) error {
	if score < 1 || score > 5 {
		return ErrScoreOutOfRange
	}
	return nil
}

// FormatPrice renders a price with two decimals.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}
