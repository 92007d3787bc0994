package directives

// Prefix marks directive attributes. They are never copied to the output.
const Prefix = "tpl-"

// Attribute names read by the standard directives.
const (
	AttrAsync     = "tpl-async"
	AttrIgnore    = "tpl-ignore"
	AttrTagName   = "tpl-tagname"
	AttrIf        = "tpl-if"
	AttrChoose    = "tpl-choose"
	AttrWhen      = "tpl-when"
	AttrOtherwise = "tpl-otherwise"

	AttrData        = "tpl-data"
	AttrDataMode    = "tpl-data-mode"
	AttrDataVar     = "tpl-data-var"
	AttrDataScope   = "tpl-data-scope"
	AttrDataOptions = "tpl-data-options"

	AttrForeach = "tpl-foreach"
	AttrRepeat  = "tpl-repeat"

	AttrTextContentType = "tpl-text-content-type"
	AttrTextUnsecure    = "tpl-text-unsecure"
	AttrTextTrimLength  = "tpl-text-trim-length"

	AttrInclude     = "tpl-include"
	AttrIncludeMode = "tpl-include-mode"

	AttrOnFinished      = "tpl-on-finished"
	AttrOnFinishedAsync = "tpl-on-finished-async"
)

// Loop qualifiers are appended to the loop attribute name, for example
// tpl-foreach-var.
const (
	qualifierVar       = "-var"
	qualifierStatus    = "-status"
	qualifierCount     = "-count"
	qualifierStart     = "-start"
	qualifierStep      = "-step"
	qualifierCondition = "-condition"
)

// Directive names.
const (
	NameInitial    = "initial"
	NameIf         = "if"
	NameData       = "data"
	NameChoose     = "choose"
	NameForeach    = "foreach"
	NameRepeat     = "repeat"
	NameAttribute  = "attribute"
	NameText       = "text"
	NameInclude    = "include"
	NameOnFinished = "on-finished"
)
