package e2e

// e2e contains integration tests that drive the whole command, from argument
// parsing to delivery, against an in-process SMTP relay, plus the utility code
// required to set that up. Note that the relay itself lives in smtptest since
// unit tests use it too.
