package block_exec

// ExecutionKind is the three-way classification of one execution attempt.
type ExecutionKind int

const (
	// ExecutionSuccess carries a usable output, possibly a discarded
	// (non-committable) one.
	ExecutionSuccess ExecutionKind = iota
	// ExecutionSkipRest carries a usable output and signals that no
	// transaction above this index may execute in the current pass.
	ExecutionSkipRest
	// ExecutionAbort reports a VM-level failure, there is no output.
	ExecutionAbort
)

type ExecutionStatus struct {
	Kind   ExecutionKind
	Output *TxnOutput
	Err    error
}

func Success(out *TxnOutput) ExecutionStatus {
	return ExecutionStatus{Kind: ExecutionSuccess, Output: out}
}

func SkipRest(out *TxnOutput) ExecutionStatus {
	return ExecutionStatus{Kind: ExecutionSkipRest, Output: out}
}

func Abort(err error) ExecutionStatus {
	return ExecutionStatus{Kind: ExecutionAbort, Err: err}
}
