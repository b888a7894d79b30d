package channels

// ExampleQueries are shown by the terminal "help" command and sent to web
// clients on connect.
var ExampleQueries = []string{
	"Identify material with peaks at 465 and 610 cm^-1, formation energy -11.2 eV/atom",
	"What material has Raman peaks at 144 and 399?",
	"I have peaks at 520 and 950 with formation energy 0.0",
	"What is Raman spectroscopy?",
	"Tell me about Ceria",
}
