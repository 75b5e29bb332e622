package domain

import (
	"strings"
	"time"
)

// PatientRecord is the read-only view of a patient consumed by the rules.
type PatientRecord struct {
	PatientID      string          `json:"patient_id" yaml:"patient_id"`
	Tumor          Tumor           `json:"tumor" yaml:"tumor"`
	MolecularTests []MolecularTest `json:"molecular_tests,omitempty" yaml:"molecular_tests,omitempty"`
}

// Tumor holds the disease-ontology codes curated for the patient's tumor.
// A nil or empty Doids slice means the tumor type is unknown.
type Tumor struct {
	Doids                []string `json:"doids,omitempty" yaml:"doids,omitempty"`
	PrimaryTumorLocation string   `json:"primary_tumor_location,omitempty" yaml:"primary_tumor_location,omitempty"`
}

// HasDoids reports whether any disease code is known for the tumor.
func (t Tumor) HasDoids() bool {
	return len(t.Doids) > 0
}

// MolecularTest is one sequencing or assay result of a patient.
type MolecularTest struct {
	TestID               string                           `json:"test_id,omitempty" yaml:"test_id,omitempty"`
	ExperimentType       ExperimentType                   `json:"experiment_type" yaml:"experiment_type"`
	Date                 *time.Time                       `json:"date,omitempty" yaml:"date,omitempty"`
	HasSufficientQuality bool                             `json:"has_sufficient_quality" yaml:"has_sufficient_quality"`
	TargetCoverage       map[string][]MolecularTestTarget `json:"target_coverage,omitempty" yaml:"target_coverage,omitempty"`

	Variants    []Variant    `json:"variants,omitempty" yaml:"variants,omitempty"`
	CopyNumbers []CopyNumber `json:"copy_numbers,omitempty" yaml:"copy_numbers,omitempty"`
	Fusions     []Fusion     `json:"fusions,omitempty" yaml:"fusions,omitempty"`
}

// IsWholeGenome reports whether the test is a whole-genome experiment.
func (m MolecularTest) IsWholeGenome() bool {
	return m.ExperimentType == ExperimentWholeGenome
}

// IsPanel reports whether the test is a gene panel.
func (m MolecularTest) IsPanel() bool {
	return m.ExperimentType == ExperimentPanel
}

// CoveredTargets returns the targets the test was able to detect for gene.
// Whole-genome tests cover every target of every gene.
func (m MolecularTest) CoveredTargets(gene string) []MolecularTestTarget {
	if m.IsWholeGenome() {
		return MolecularTestTargets
	}
	if targets, ok := m.TargetCoverage[gene]; ok {
		return targets
	}
	// Coverage maps are keyed by HGNC symbol; tolerate case differences.
	for g, targets := range m.TargetCoverage {
		if strings.EqualFold(g, gene) {
			return targets
		}
	}
	return nil
}

// DriverLikelihood grades how likely a finding is to drive the tumor.
type DriverLikelihood string

const (
	DriverLikelihoodHigh   DriverLikelihood = "HIGH"
	DriverLikelihoodMedium DriverLikelihood = "MEDIUM"
	DriverLikelihoodLow    DriverLikelihood = "LOW"
)

// Variant is a small variant (SNV, MNV or indel) detected by a test.
type Variant struct {
	Gene             string           `json:"gene" yaml:"gene"`
	Event            string           `json:"event" yaml:"event"`
	IsReportable     bool             `json:"is_reportable" yaml:"is_reportable"`
	DriverLikelihood DriverLikelihood `json:"driver_likelihood,omitempty" yaml:"driver_likelihood,omitempty"`
}

// CopyNumberType classifies a copy number event.
type CopyNumberType string

const (
	CopyNumberFullGain    CopyNumberType = "FULL_GAIN"
	CopyNumberPartialGain CopyNumberType = "PARTIAL_GAIN"
	CopyNumberLoss        CopyNumberType = "LOSS"
)

// CopyNumber is an amplification or deletion detected by a test.
type CopyNumber struct {
	Gene         string         `json:"gene" yaml:"gene"`
	Event        string         `json:"event" yaml:"event"`
	Type         CopyNumberType `json:"type" yaml:"type"`
	MinCopies    int            `json:"min_copies" yaml:"min_copies"`
	IsReportable bool           `json:"is_reportable" yaml:"is_reportable"`
}

// IsGain reports whether the copy number is an amplification.
func (c CopyNumber) IsGain() bool {
	return c.Type == CopyNumberFullGain || c.Type == CopyNumberPartialGain
}

// Fusion is a gene fusion detected by a test.
type Fusion struct {
	GeneStart    string `json:"gene_start" yaml:"gene_start"`
	GeneEnd      string `json:"gene_end" yaml:"gene_end"`
	Event        string `json:"event" yaml:"event"`
	IsReportable bool   `json:"is_reportable" yaml:"is_reportable"`
}

// Involves reports whether gene takes part in the fusion. Gene symbols are
// compared case-insensitively.
func (f Fusion) Involves(gene string) bool {
	return strings.EqualFold(f.GeneStart, gene) || strings.EqualFold(f.GeneEnd, gene)
}
