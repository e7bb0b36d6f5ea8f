package marketing

// MarketingStrategy is the synthesis record.
type MarketingStrategy struct {
	Angles        []MarketingAngle        `json:"angles" validate:"min=1,dive"`
	Channels      []ChannelRecommendation `json:"channels" validate:"dive"`
	Keywords      []string                `json:"keywords"`
	Taglines      []string                `json:"taglines"`
	CampaignIdeas []CampaignIdea          `json:"campaign_ideas" validate:"dive"`
}

type MarketingAngle struct {
	Name           string   `json:"name" validate:"required"`
	Description    string   `json:"description"`
	TargetPersonas []string `json:"target_personas" validate:"min=1"`
}

type ChannelRecommendation struct {
	Channel    string `json:"channel" validate:"required"`
	Reach      Level  `json:"reach" validate:"oneof=High Medium Low"`
	Cost       Level  `json:"cost" validate:"oneof=High Medium Low"`
	Difficulty Level  `json:"difficulty" validate:"oneof=High Medium Low"`
	Rationale  string `json:"rationale"`
}

type CampaignIdea struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Timeline    string `json:"timeline"`
}

func (s MarketingStrategy) PersonaRefs() []string {
	var refs []string
	for _, a := range s.Angles {
		refs = append(refs, a.TargetPersonas...)
	}
	return refs
}
