package dialog

// Help and Info are single-step dialogs with static text.

func Help() *Dialog {
	return &Dialog{
		Name: "help",
		Steps: []Step{
			func(r *Run, _ string) Outcome {
				r.Say(r.T("help_text"))
				return End("")
			},
		},
	}
}

func Info() *Dialog {
	return &Dialog{
		Name: "info",
		Steps: []Step{
			func(r *Run, _ string) Outcome {
				r.Say(r.T("info_text"))
				return End("")
			},
		},
	}
}

// All returns every dialog the dispatcher registers.
func All() []*Dialog {
	return []*Dialog{
		Auth(),
		InstantNote(),
		InstantJournal(),
		AdvancedPost(),
		Reply(),
		Like(),
		Repost(),
		RSVP(),
		Photo(),
		Delete(),
		Undelete(),
		Edit(),
		ShareURL(),
		Help(),
		Info(),
	}
}
