/*
Package compliance implements the deterministic verification engine.

Engine.Verify checks an AI-generated clinical summary against the EMR
encounter and, optionally, a protocol configuration:

 1. Every extracted date must be the admission or discharge date.
    Others raise CRITICAL INVARIANT_DATE_MISMATCH.
 2. A sepsis diagnosis requires an antibiotic mention in the summary.
    Otherwise it raises HIGH PROTOCOL_ADHERENCE_MISSING.
 3. The summary must not contain an identifier matching a PII pattern.
    A match raises CRITICAL SAFETY_PII_LEAK.
 4. With a protocol configuration, the enabled protocol checkers run over
    the extracted medications.

Any CRITICAL alert makes the run a failure carrying only the critical
alerts. Otherwise the run succeeds with a tiered trust score: 1.0 with no
alerts, 0.9 with alerts below HIGH, and 0.7 with any HIGH alert.

The engine does no I/O, holds no mutable state, and is safe for concurrent
use. Identical inputs always produce identical results.

# PII patterns

The default pattern matches Medicare-style numbers: ten digits, optionally
grouped 4-5-1 with single spaces. SSNPattern is available for US deployments
and can replace or join the default through WithPIIPatterns.
*/
package compliance
