package tracevent

import (
	"regexp"
	"strings"
)

// Category names one abstract, dialect-independent attribute a raw event
// can have ("this event is a kernel launch", "this event is an HtoD
// transfer"). Classification asks each dialect's predicate table which
// categories an event matches, then reduces the match set to an EventClass.
type Category string

const (
	CatComputePrep     Category = "acc_compute_prep"
	CatKernel          Category = "acc_kernel"
	CatDataTransferH2D Category = "acc_datatransfer_HtoD"
	CatDataTransferD2H Category = "acc_datatransfer_DtoH"
	CatDataConvert     Category = "acc_data_convert"
	CatRdmaPrepSync    Category = "acc_rdma_prep_sync"
	CatBarrier         Category = "acc_barrier"
	CatSupernodeLaunch Category = "acc_supernode_launch"
	CatSupernodeExec   Category = "acc_supernode_exec"
	CatCollective      Category = "acc_collective"
	CatEventCat        Category = "acc_event_cat" // tb_refinement's coarse "is this an accelerator event" test
)

type predicateKind int

const (
	predNone predicateKind = iota
	predIs
	predHas
	predName
)

// Predicate is a small tagged variant over the three forms the original
// dialect tables expressed as strings ("is.<path>", "has.<path>", a bare
// name pattern): a compiled table of these replaces the chained substring
// checks the category matching used to require.
type Predicate struct {
	kind  predicateKind
	path  []string
	regex *regexp.Regexp
}

// Is builds a predicate that matches when event[path] (rendered as a
// string) matches pattern.
func Is(path, pattern string) Predicate {
	return Predicate{kind: predIs, path: strings.Split(path, "."), regex: regexp.MustCompile(pattern)}
}

// Has builds a predicate that matches when path resolves to any value.
func Has(path string) Predicate {
	return Predicate{kind: predHas, path: strings.Split(path, ".")}
}

// Name builds a predicate that matches pattern against event.name.
func Name(pattern string) Predicate {
	return Predicate{kind: predName, regex: regexp.MustCompile(pattern)}
}

// none matches nothing; used for categories a dialect does not support.
func none() Predicate { return Predicate{kind: predNone} }

// Match reports whether event satisfies the predicate.
func (p Predicate) Match(e *TraceEvent) bool {
	switch p.kind {
	case predIs:
		v, ok := e.Lookup(p.path)
		if !ok {
			return false
		}
		return p.regex.MatchString(toMatchString(v))
	case predHas:
		_, ok := e.Lookup(p.path)
		return ok
	case predName:
		return p.regex.MatchString(e.Name)
	default:
		return false
	}
}

func toMatchString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Dialect is a named, read-mostly table mapping categories to predicates.
// It is attached to a job/pid at ingest time (GlobalIngestData) and consulted
// by the classifier for every event produced by that job.
type Dialect struct {
	Name  string
	table map[Category]Predicate
}

// Is reports whether event matches the named category under this dialect.
func (d Dialect) Is(e *TraceEvent, cat Category) bool {
	p, ok := d.table[cat]
	if !ok {
		return false
	}
	return p.Match(e)
}

// FLEX is the dialect emitted by the Flex compute-graph runtime.
var FLEX = Dialect{
	Name: "FLEX",
	table: map[Category]Predicate{
		CatComputePrep:     Name("Cmpt Prep$"),
		CatKernel:          Is("name", "Cmpt Exec$"),
		CatDataTransferH2D: Name("DmaI"),
		CatDataTransferD2H: Name("DmaO"),
		CatDataConvert:     Name("Compute of"),
		CatRdmaPrepSync:    Name("PrepareAndSyncRdma"),
		CatBarrier:         Name("Barrier:"),
		CatSupernodeLaunch: Name("Flex Roundtrip"),
		CatSupernodeExec:   Name("Flex Roundtrip"),
		CatCollective:      Has("args.CollGroup"),
		CatEventCat:        Has("args.TS1"),
	},
}

// TORCH is the dialect emitted by the PyTorch aiu backend.
var TORCH = Dialect{
	Name: "TORCH",
	table: map[Category]Predicate{
		CatComputePrep:     Name("Cmpt Prep$"),
		CatKernel:          Is("cat", "kernel"),
		CatDataTransferH2D: Name("aiuDataTransferHtoD"),
		CatDataTransferD2H: Name("aiuDataTransferDtoH"),
		CatDataConvert:     Name("aiuDataConvert"),
		CatRdmaPrepSync:    Name("aiuPrepareAndSyncRDMA"),
		CatBarrier:         Name("Barrier:"),
		CatSupernodeLaunch: Name("aiuLaunchSuperNode"),
		CatSupernodeExec:   Name("aiuSuperNodeExecution"),
		CatCollective:      Has("args.CollGroup"),
		CatEventCat:        Is("cat", "kernel"),
	},
}

// ByName looks up a registered dialect by its wire name ("FLEX", "TORCH").
// ok is false for any other name, including unset/empty.
func ByName(name string) (Dialect, bool) {
	switch strings.ToUpper(name) {
	case "FLEX":
		return FLEX, true
	case "TORCH":
		return TORCH, true
	default:
		return Dialect{}, false
	}
}
