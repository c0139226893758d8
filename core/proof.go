package core

// ProofType tags artifacts produced by the commitment/nullifier scheme
const ProofType = "zk-snark"

// Groth16Proof mirrors the output shape of a Groth16 prover
type Groth16Proof struct {
	PiA []string   `json:"pi_a"`
	PiB [][]string `json:"pi_b"`
	PiC []string   `json:"pi_c"`
}

// ProofArtifact binds an authentication event to a commitment without exposing the address.
// The proof blob is random filler; only structure and freshness can be checked.
type ProofArtifact struct {
	Type          string        `json:"type"`
	Commitment    string        `json:"commitment"`
	Nullifier     string        `json:"nullifier"`
	PrivateInputs string        `json:"privateInputs"`
	PublicSignals []string      `json:"publicSignals"`
	Proof         *Groth16Proof `json:"proof"`
	Verified      bool          `json:"verified"`
	Timestamp     int64         `json:"timestamp"` // unix milliseconds
	Note          string        `json:"note,omitempty"`
}

// Summary returns the client-facing subset of the artifact
func (p *ProofArtifact) Summary() ProofSummary {
	if p == nil {
		return ProofSummary{}
	}
	return ProofSummary{
		Commitment: p.Commitment,
		Nullifier:  p.Nullifier,
		Type:       p.Type,
	}
}
