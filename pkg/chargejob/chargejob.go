// Package chargejob splits a charge-job string into the field values the
// runtime parseChargeJob action exposes to later steps.
package chargejob

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Separator splits the parts of a charge job.
const Separator = "/"

// minPartLen is the shortest trimmed part that counts as a value.
const minPartLen = 2

var codePrefix = regexp.MustCompile(`^\([^)]+\)\s*`)

// Variable names set by parseChargeJob.
const (
	VarPart1      = "chargeJobPart1"
	VarPart1Clean = "chargeJobPart1Clean"
	VarPart2      = "chargeJobPart2"
	VarPart3      = "chargeJobPart3"
	VarHasPart2   = "hasChargeJobPart2"
	VarHasPart3   = "hasChargeJobPart3"
	VarPartsCount = "chargeJobPartsCount"
	VarFieldCount = "expectedFieldCount"
)

// ChargeJob is a parsed charge-job string such as
// "(GA9010) VEHICLE RUNNING / BE001 (LOADER) / 11 (WORKSHOP)".
type ChargeJob struct {
	Raw   string   `json:"raw"`
	Parts []string `json:"parts"`
}

// Parse splits s on "/" and keeps the trimmed parts of at least two
// characters. It never fails; an empty string has no parts.
func Parse(s string) ChargeJob {
	cj := ChargeJob{Raw: s, Parts: []string{}}
	for _, p := range strings.Split(s, Separator) {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) >= minPartLen {
			cj.Parts = append(cj.Parts, p)
		}
	}
	return cj
}

// Part returns part n (1-based), or "" when absent.
func (c ChargeJob) Part(n int) string {
	if n < 1 || n > len(c.Parts) {
		return ""
	}
	return c.Parts[n-1]
}

// Part1Clean is part 1 without its leading "(CODE)" prefix.
func (c ChargeJob) Part1Clean() string {
	return strings.TrimSpace(codePrefix.ReplaceAllString(c.Part(1), ""))
}

// ExpectedFieldCount counts the form fields the entry row will show: the
// employee field plus one per part.
func (c ChargeJob) ExpectedFieldCount() int { return len(c.Parts) + 1 }

// Vars returns the variables parseChargeJob stores, rendered as strings
// for placeholder substitution.
func (c ChargeJob) Vars() map[string]string {
	return map[string]string{
		VarPart1:      c.Part(1),
		VarPart1Clean: c.Part1Clean(),
		VarPart2:      c.Part(2),
		VarPart3:      c.Part(3),
		VarHasPart2:   strconv.FormatBool(len(c.Parts) > 1),
		VarHasPart3:   strconv.FormatBool(len(c.Parts) > 2),
		VarPartsCount: strconv.Itoa(len(c.Parts)),
		VarFieldCount: strconv.Itoa(c.ExpectedFieldCount()),
	}
}

// Names lists the variables Vars sets.
func Names() []string {
	return []string{
		VarPart1, VarPart1Clean, VarPart2, VarPart3,
		VarHasPart2, VarHasPart3, VarPartsCount, VarFieldCount,
	}
}
