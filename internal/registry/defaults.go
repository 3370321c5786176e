package registry

// defaultVagueSynonyms maps vague wording to concrete replacements. The
// table carries both English and Spanish entries because mixed-language
// prompts are common enough to warrant first-class suggestions.
func defaultVagueSynonyms() map[string]string {
	return map[string]string{
		"nice":        "visually consistent",
		"good":        "high-quality",
		"great":       "measurably better",
		"better":      "improved against a stated baseline",
		"cool":        "distinctive",
		"awesome":     "polished",
		"pretty":      "well-formatted",
		"simple":      "minimal, with only required fields",
		"easy":        "straightforward to follow",
		"fast":        "completing under a stated time budget",
		"modern":      "aligned with current conventions",
		"clean":       "free of redundant elements",
		"thing":       "component",
		"things":      "components",
		"stuff":       "specific items",
		"something":   "a concrete deliverable",
		"interesting": "relevant to the stated audience",
		"bonita":      "con un formato claro y definido",
		"bonito":      "con un formato claro y definido",
		"bueno":       "de alta calidad",
		"buena":       "de alta calidad",
		"mejor":       "mejorado frente a una referencia concreta",
		"rapido":      "con un tiempo de respuesta definido",
		"cosa":        "un elemento concreto",
		"cosas":       "elementos concretos",
	}
}

func defaultPacks() []DomainPack {
	return []DomainPack{
		{
			Name:         "sql",
			Description:  "Relational database queries, schema design and data modelling",
			PromptPrefix: "SQL task: ",
			SystemPrompt: "You are a senior database engineer. Produce correct, portable SQL and explain schema decisions briefly. Prefer explicit column lists, name constraints, and call out index implications.",
			Weights:      WeightProfile{Clarity: 0.25, Specificity: 0.35, Structure: 0.25, Completeness: 0.15},
			Rules: []Rule{
				{Name: "sql_get_to_select", Pattern: `\bget me\b`, Replacement: "select"},
				{Name: "sql_make_table", Pattern: `\bmake (a |an )?table\b`, Replacement: "create a table"},
				{Name: "sql_show_to_select", Pattern: `\bshow me\b`, Replacement: "select"},
				{Name: "sql_remove_to_delete", Pattern: `\bremove\b`, Replacement: "delete"},
			},
			Keywords:      []string{"sql", "query", "table", "database", "select", "join", "schema", "index", "postgres", "mysql", "rows", "columns"},
			ExpectedTerms: []string{"table", "query", "column", "schema", "database"},
			KeywordGroups: [][]string{
				{"table", "schema", "database"},
				{"constraint", "index", "key"},
				{"select", "insert", "update", "delete"},
				{"join", "where", "group"},
			},
			TechnicalTerms: []string{"join", "index", "constraint", "foreign", "primary", "transaction", "view", "trigger", "normalization", "migration"},
			Examples: []Example{
				{
					Input:  "Create a users table",
					Output: "CREATE TABLE users (id UUID PRIMARY KEY, email TEXT NOT NULL UNIQUE, created_at TIMESTAMPTZ NOT NULL DEFAULT now());",
					Note:   "Explicit types, a primary key and a uniqueness constraint make intent unambiguous.",
				},
				{
					Input:  "Find inactive customers",
					Output: "SELECT id, email FROM customers WHERE last_seen_at < now() - interval '90 days' ORDER BY last_seen_at;",
					Note:   "State the inactivity window instead of leaving it to interpretation.",
				},
			},
		},
		{
			Name:         "branding",
			Description:  "Brand voice, naming, positioning and copywriting",
			PromptPrefix: "Branding brief: ",
			SystemPrompt: "You are a brand strategist. Deliver copy and naming options grounded in the stated audience, tone and differentiators. Always give rationale with each option.",
			Weights:      WeightProfile{Clarity: 0.35, Specificity: 0.25, Structure: 0.2, Completeness: 0.2},
			Rules: []Rule{
				{Name: "branding_logo_scope", Pattern: `\blogo\b`, Replacement: "logo (include usage contexts)"},
				{Name: "branding_catchy", Pattern: `\bcatchy\b`, Replacement: "memorable and audience-appropriate"},
			},
			Keywords:      []string{"brand", "branding", "logo", "slogan", "tagline", "audience", "voice", "identity", "naming", "positioning"},
			ExpectedTerms: []string{"audience", "tone", "brand"},
			KeywordGroups: [][]string{
				{"audience", "customer", "segment"},
				{"voice", "tone", "personality"},
				{"competitor", "positioning", "differentiator"},
			},
			TechnicalTerms: []string{"positioning", "archetype", "persona", "differentiator", "tagline"},
			Examples: []Example{
				{
					Input:  "Write a slogan for my coffee shop",
					Output: "Write three slogan options for a specialty coffee shop targeting remote workers; warm, unhurried tone; under 6 words each; include a one-line rationale per option.",
				},
			},
		},
		{
			Name:         "cine",
			Description:  "Screenwriting, shot planning and film production notes",
			PromptPrefix: "Film brief: ",
			SystemPrompt: "You are an experienced screenwriter and director of photography. Answer with concrete scene, shot and dialogue guidance, referencing format conventions where relevant.",
			Weights:      WeightProfile{Clarity: 0.3, Specificity: 0.2, Structure: 0.3, Completeness: 0.2},
			Rules: []Rule{
				{Name: "cine_script_format", Pattern: `\bscript\b`, Replacement: "screenplay (standard format)"},
			},
			Keywords:      []string{"scene", "film", "movie", "screenplay", "shot", "camera", "dialogue", "character", "storyboard", "montage"},
			ExpectedTerms: []string{"scene", "character", "tone"},
			KeywordGroups: [][]string{
				{"scene", "act", "sequence"},
				{"character", "dialogue", "arc"},
				{"shot", "camera", "lighting"},
			},
			TechnicalTerms: []string{"blocking", "coverage", "slugline", "voiceover", "continuity"},
			Examples: []Example{
				{
					Input:  "Write a scene where two friends argue",
					Output: "Write a 2-page screenplay scene, interior kitchen at night, where two lifelong friends argue about a loan; escalate through subtext before the direct accusation; end on an unresolved beat.",
				},
			},
		},
		{
			Name:         "saas",
			Description:  "SaaS product specs, onboarding flows and feature definitions",
			PromptPrefix: "Product spec: ",
			SystemPrompt: "You are a senior product manager for B2B SaaS. Produce requirements with user stories, acceptance criteria and explicit edge cases. Flag metrics for each feature.",
			Weights:      WeightProfile{Clarity: 0.25, Specificity: 0.3, Structure: 0.2, Completeness: 0.25},
			Rules: []Rule{
				{Name: "saas_feature_scope", Pattern: `\badd (a |an )?feature\b`, Replacement: "specify a feature"},
				{Name: "saas_users_to_personas", Pattern: `\bfor users\b`, Replacement: "for the target user persona"},
			},
			Keywords:      []string{"saas", "subscription", "onboarding", "churn", "dashboard", "tenant", "billing", "trial", "feature", "mrr"},
			ExpectedTerms: []string{"user", "feature", "metric"},
			KeywordGroups: [][]string{
				{"user", "persona", "segment"},
				{"metric", "kpi", "conversion"},
				{"plan", "tier", "billing"},
			},
			TechnicalTerms: []string{"retention", "activation", "funnel", "cohort", "entitlement"},
			Examples: []Example{
				{
					Input:  "Improve our onboarding",
					Output: "Draft an onboarding flow spec for a project-management SaaS: target first-value within 10 minutes, 5 steps max, with an activation metric and two drop-off mitigations per step.",
				},
			},
		},
		{
			Name:         "devops",
			Description:  "Infrastructure, CI/CD, observability and deployment automation",
			PromptPrefix: "Infrastructure task: ",
			SystemPrompt: "You are a platform engineer. Provide infrastructure answers as reviewable configuration or scripts, state assumptions about the environment, and call out failure modes.",
			Weights:      WeightProfile{Clarity: 0.2, Specificity: 0.35, Structure: 0.25, Completeness: 0.2},
			Rules: []Rule{
				{Name: "devops_deploy_scope", Pattern: `\bdeploy it\b`, Replacement: "deploy the service (state target environment)"},
				{Name: "devops_setup", Pattern: `\bset ?up\b`, Replacement: "provision"},
			},
			Keywords:      []string{"deploy", "docker", "kubernetes", "pipeline", "terraform", "ci", "cd", "monitoring", "container", "cluster", "helm"},
			ExpectedTerms: []string{"environment", "pipeline", "deploy"},
			KeywordGroups: [][]string{
				{"container", "image", "registry"},
				{"pipeline", "stage", "artifact"},
				{"monitoring", "alert", "metric"},
			},
			TechnicalTerms: []string{"rollback", "canary", "autoscaling", "ingress", "provisioning", "idempotent"},
			Examples: []Example{
				{
					Input:  "Set up monitoring",
					Output: "Provision monitoring for a 3-service Kubernetes cluster: scrape latency/error/saturation per service, alert on p99 latency over 500ms for 5 minutes, route alerts to the on-call channel.",
				},
			},
		},
		{
			Name:         "general",
			Description:  "Fallback domain when no specific profile applies",
			PromptPrefix: "",
			SystemPrompt: "You are a precise assistant. Follow the instructions exactly, ask for no clarification, and state any assumption you must make.",
			Weights:      Uniform(),
			Rules: []Rule{
				{Name: "general_make_me", Pattern: `\bmake me (a |an )?`, Replacement: "create a "},
				{Name: "general_i_want", Pattern: `\bi want (you to )?`, Replacement: ""},
				{Name: "general_can_you", Pattern: `\b(can|could) you( please)? `, Replacement: ""},
				{Name: "general_please_trim", Pattern: `^please\s+`, Replacement: ""},
			},
			Keywords:      []string{},
			ExpectedTerms: []string{},
			KeywordGroups: [][]string{
				{"format", "structure", "output"},
				{"example", "sample", "reference"},
			},
			TechnicalTerms: []string{},
			Examples: []Example{
				{
					Input:  "Summarize this article",
					Output: "Summarize the article below in 5 bullet points of at most 20 words each, preserving any figures cited.",
				},
			},
		},
	}
}
