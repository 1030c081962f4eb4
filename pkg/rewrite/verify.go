package rewrite

import (
	"github.com/ormasoftchile/stepfix/pkg/locate"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

// BranchStatus is the migration status of one branch.
type BranchStatus struct {
	Name          string  `json:"name"`
	UpToDate      bool    `json:"upToDate"`
	RetrySteps    int     `json:"retrySteps"`
	LegacyInputs  int     `json:"legacyInputs"`
	Prerequisites int     `json:"prerequisites"`
	SettleWaits   int     `json:"settleWaits"`
	Pending       []Event `json:"pending,omitempty"`
	Warnings      []Event `json:"warnings,omitempty"`
}

// Verification reports whether a document is fully migrated.
type Verification struct {
	Branches []BranchStatus `json:"branches"`
}

// UpToDate reports whether no branch has pending edits.
func (v *Verification) UpToDate() bool {
	for _, b := range v.Branches {
		if !b.UpToDate {
			return false
		}
	}
	return true
}

// Verify rewrites a copy of doc and lists the edits that would be made.
// The document is up to date when there are none.
func (r *Rewriter) Verify(doc *template.Document) (*Verification, error) {
	_, report, err := r.RewriteDocument(doc)
	if err != nil {
		return nil, err
	}
	branches, err := locate.Find(doc.Steps, r.profile.BranchPath)
	if err != nil {
		return nil, err
	}
	lists := map[string]template.StepList{
		template.ParamThenSteps: branches.Then,
		template.ParamElseSteps: branches.Else,
	}

	v := &Verification{}
	for _, br := range report.Branches {
		st := BranchStatus{
			Name:     br.Name,
			UpToDate: !br.Changed,
			Pending:  br.Edits(),
			Warnings: br.Warnings(),
		}
		for _, s := range lists[br.Key] {
			switch {
			case r.profile.IsPrerequisite(s):
				st.Prerequisites++
			case r.profile.IsSentinel(s):
				st.SettleWaits++
			}
			if _, ok := r.profile.CanonicalField(s); ok {
				st.RetrySteps++
			}
			if _, ok := r.profile.AnchorField(s); ok {
				st.LegacyInputs++
			}
		}
		v.Branches = append(v.Branches, st)
	}
	return v, nil
}
