// Package fields implements the saved-field store shared between test steps.
//
// Values captured by a step's Save Fields column are stored under
// "<TCID>.<path>" and read back through ${...} placeholders. The store is
// passed explicitly to the components that need it; File optionally persists
// it as YAML between runs.
package fields
