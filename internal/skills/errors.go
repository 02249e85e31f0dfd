package skills

import "errors"

// Skill registry errors.
var (
	// ErrUnregisteredSkill is reported when a plan names a skill that is not
	// in the registry.
	ErrUnregisteredSkill = errors.New("unregistered skill")

	// ErrSkillNameEmpty is returned when a definition has no name.
	ErrSkillNameEmpty = errors.New("skill name cannot be empty")

	// ErrUnknownSkillName is returned for names outside the skill catalogue.
	ErrUnknownSkillName = errors.New("skill name is not in the catalogue")

	// ErrSkillHandlerNil is returned when a definition has no handler.
	ErrSkillHandlerNil = errors.New("skill handler cannot be nil")

	// ErrSkillAlreadyRegistered is returned when registering a duplicate.
	ErrSkillAlreadyRegistered = errors.New("skill already registered")
)
