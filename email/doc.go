package email

// email is responsible for turning a send request into a single outbound
// message and handing it to an SMTP relay, including connecting to the
// server, negotiating STARTTLS and authentication. Messages are either
// assembled from discrete fields or read verbatim from a pre-formed MIME
// document. It knows nothing about where a request came from, so the command
// line surface lives in userconfig.
