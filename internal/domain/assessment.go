package domain

import "mev-sentinel/internal/fhe"

// ThreatAssessment is the result of scoring one swap. All fields are
// ciphertexts; the caller owns the decryption and persistence policy.
// IsMevThreat is always derived from RiskScore by an encrypted threshold
// comparison, never set independently.
type ThreatAssessment struct {
	RiskScore                    fhe.Ciphertext // euint64, clamped to [0,100]
	IsMevThreat                  fhe.Ciphertext // ebool, RiskScore >= sensitivity threshold
	RecommendedSlippageBufferBps fhe.Ciphertext // euint64
	RecommendedDelaySeconds      fhe.Ciphertext // euint32
	EstimatedMevLoss             fhe.Ciphertext // euint128, expected adversary extraction
}
