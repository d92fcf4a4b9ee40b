package llm

const classifyPrompt = `You are an identity dimension classifier. Assign the following observation about a subject to exactly one dimension:

- values: what the subject holds important, ethical commitments
- voice: how the subject expresses itself, tone, style
- behavior: what the subject does, habits, working patterns
- relationships: how the subject relates to others
- worldview: how the subject models the world, beliefs about reality
- general: none of the above fits

Respond with ONLY the dimension name, lowercase, no explanation.

Observation:
%s`

const classifyBatchPrompt = `You are an identity dimension classifier. Assign each numbered observation about a subject to exactly one dimension:

- values: what the subject holds important, ethical commitments
- voice: how the subject expresses itself, tone, style
- behavior: what the subject does, habits, working patterns
- relationships: how the subject relates to others
- worldview: how the subject models the world, beliefs about reality
- general: none of the above fits

Respond ONLY with a JSON array of lowercase dimension names in input order, no markdown. Example: ["values","voice"]

Observations:
%s`

const contradictionPrompt = `Do these two statements about the same subject contradict each other?
Statement A: %s
Statement B: %s

Answer only "true" or "false". No explanation.`
