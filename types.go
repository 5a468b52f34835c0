package cobweb

import (
	"github.com/jward/cobweb/internal/model"
	"github.com/jward/cobweb/internal/store"
)

// Public type aliases for internal types used in the Engine and QueryBuilder
// APIs. External consumers use these names; no conversion is needed.

type Store = store.Store
type File = store.File
type Variable = store.Variable
type Diagnostic = store.Diagnostic
type CopybookUsage = store.CopybookUsage

type ExtendedDocument = model.ExtendedDocument
type VariableNode = model.VariableNode
type CopybookName = model.CopybookName
type CopybookConfig = model.CopybookConfig
type ProcessingMode = model.ProcessingMode

// Processing modes.
const (
	ModeEnabled        = model.ModeEnabled
	ModeEnabledVerbose = model.ModeEnabledVerbose
	ModeDisabled       = model.ModeDisabled
)
