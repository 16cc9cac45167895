// Package compliance runs billing-narrative checks over batches of time
// entries.
//
// Rules are small values implementing Rule. A Config document (YAML or JSON)
// resolves into an ordered Plan of {kind, enabled, params} specs which the
// Engine turns into its rule list once per run. Every rule runs in
// isolation: a panicking rule is reported in Report.RuleErrors and the rest
// still contribute issues. Invalid entries are listed in Report.Skipped and
// excluded from rule input. Configuration problems never abort a run; they
// fall back to defaults and surface as Report.ConfigWarnings.
package compliance
